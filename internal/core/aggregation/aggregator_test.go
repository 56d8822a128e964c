package aggregation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func fold(spec Spec, records ...map[string]any) *State {
	s := NewState(spec)
	for _, r := range records {
		s.Update(r)
	}
	return s
}

func TestOperators_UpdateAndFinalize(t *testing.T) {
	records := []map[string]any{
		{"amount": json.Number("10.5"), "customer": "A"},
		{"amount": 4.5, "customer": "B"},
		{"amount": "not-a-number", "customer": "A"},
		{"customer": nil},
		{"amount": int64(-3), "customer": "C"},
	}

	tests := []struct {
		name string
		spec Spec
		want *float64
	}{
		{name: "count star counts every record", spec: Spec{Function: FuncCount, Field: AllFields}, want: ptr(5)},
		{name: "count field counts regardless of value", spec: Spec{Function: FuncCount, Field: "amount"}, want: ptr(5)},
		{name: "sum ignores non numeric", spec: Spec{Function: FuncSum, Field: "amount"}, want: ptr(12)},
		{name: "avg over numeric values only", spec: Spec{Function: FuncAvg, Field: "amount"}, want: ptr(4)},
		{name: "min", spec: Spec{Function: FuncMin, Field: "amount"}, want: ptr(-3)},
		{name: "max", spec: Spec{Function: FuncMax, Field: "amount"}, want: ptr(10.5)},
		{name: "count distinct skips null and missing", spec: Spec{Function: FuncCountDistinct, Field: "customer"}, want: ptr(3)},
		{name: "p50", spec: Spec{Function: FuncP50, Field: "amount"}, want: ptr(4.5)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := fold(tc.spec, records...).Finalize()
			require.NotNil(t, got)
			require.InDelta(t, *tc.want, *got, 1e-9)
		})
	}
}

func TestOperators_EmptyStateFinalizesToNull(t *testing.T) {
	for _, fn := range []Function{FuncAvg, FuncMin, FuncMax, FuncP90} {
		t.Run(string(fn), func(t *testing.T) {
			require.Nil(t, fold(Spec{Function: fn, Field: "x"}, map[string]any{"y": 1}).Finalize())
		})
	}

	got := fold(Spec{Function: FuncSum, Field: "x"}).Finalize()
	require.NotNil(t, got)
	require.Equal(t, 0.0, *got)
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	values := func() []float64 { return []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1} }

	p50, ok := Percentile(values(), 50)
	require.True(t, ok)
	require.InDelta(t, 5.5, p50, 1e-9)

	p90, ok := Percentile(values(), 90)
	require.True(t, ok)
	require.InDelta(t, 9.1, p90, 1e-9)

	p99, _ := Percentile(values(), 99)
	require.InDelta(t, 9.91, p99, 1e-9)

	single, ok := Percentile([]float64{42}, 95)
	require.True(t, ok)
	require.Equal(t, 42.0, single)

	_, ok = Percentile(nil, 50)
	require.False(t, ok)
}

func TestValidFunction(t *testing.T) {
	require.True(t, ValidFunction(FuncSum))
	require.True(t, ValidFunction(FuncCountDistinct))
	require.True(t, ValidFunction(FuncP99))
	require.False(t, ValidFunction("median"))
	require.False(t, ValidFunction(""))
}

func TestParseFunction(t *testing.T) {
	fn, err := ParseFunction("Count_Distinct")
	require.NoError(t, err)
	require.Equal(t, FuncCountDistinct, fn)

	fn, err = ParseFunction(" P95 ")
	require.NoError(t, err)
	require.Equal(t, FuncP95, fn)

	_, err = ParseFunction("stddev")
	require.Error(t, err)
}

func TestSpec_ValidateAndAlias(t *testing.T) {
	require.NoError(t, Spec{Function: FuncCount, Field: AllFields}.Validate())
	require.NoError(t, Spec{Function: FuncCount}.Validate())
	require.Error(t, Spec{Function: FuncSum}.Validate())
	require.Error(t, Spec{Function: FuncSum, Field: AllFields}.Validate())
	require.Error(t, Spec{Function: "median", Field: "x"}.Validate())

	require.Equal(t, "sum_amount", Spec{Function: FuncSum, Field: "amount"}.EffectiveAlias())
	require.Equal(t, "count_all", Spec{Function: FuncCount, Field: AllFields}.EffectiveAlias())
	require.Equal(t, "total", Spec{Function: FuncSum, Field: "amount", Alias: "total"}.EffectiveAlias())
}

func TestFunction_Additive(t *testing.T) {
	require.True(t, FuncSum.IsAdditive())
	require.True(t, FuncCount.IsAdditive())
	for _, fn := range []Function{FuncAvg, FuncMin, FuncMax, FuncCountDistinct, FuncP50} {
		require.False(t, fn.IsAdditive(), fn)
	}
}

func ptr(v float64) *float64 { return &v }
