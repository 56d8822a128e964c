package aggregation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGroupKey_DelimiterValuesDoNotCollide(t *testing.T) {
	one := NewGroupKey(map[string]any{"a": "a|b", "b": nil}, []string{"a"})
	two := NewGroupKey(map[string]any{"a": "a", "b": "b"}, []string{"a", "b"})
	require.NotEqual(t, one.Encoded, two.Encoded)

	quoted := NewGroupKey(map[string]any{"a": `a","b`}, []string{"a"})
	require.NotEqual(t, quoted.Encoded, two.Encoded)
}

func TestNewGroupKey_Deterministic(t *testing.T) {
	r := map[string]any{"region": "EU", "year": json.Number("2024")}
	require.Equal(t,
		NewGroupKey(r, []string{"region", "year"}).Encoded,
		NewGroupKey(map[string]any{"year": 2024.0, "region": "EU"}, []string{"region", "year"}).Encoded,
	)
}

func TestNewGroupKey_TypesStayDistinct(t *testing.T) {
	num := NewGroupKey(map[string]any{"k": json.Number("5")}, []string{"k"})
	str := NewGroupKey(map[string]any{"k": "5"}, []string{"k"})
	null := NewGroupKey(map[string]any{}, []string{"k"})
	require.NotEqual(t, num.Encoded, str.Encoded)
	require.NotEqual(t, str.Encoded, null.Encoded)
	require.Equal(t, map[string]any{"k": nil}, null.Map())
}

func TestNewGroupKey_ImplicitAllGroup(t *testing.T) {
	k := NewGroupKey(map[string]any{"x": 1}, nil)
	require.Equal(t, allGroup, k.Encoded)
	require.Nil(t, k.Map())
}

func TestEncodeValue_NumericNormalization(t *testing.T) {
	require.Equal(t, EncodeValue(5), EncodeValue(json.Number("5.0")))
	require.Equal(t, EncodeValue(int64(5)), EncodeValue(5.0))
	require.NotEqual(t, EncodeValue(5), EncodeValue("5"))
}

func TestDistinctValue_NumericStringsMeetNumbers(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		same bool
	}{
		{name: "string and int", a: "5", b: 5, same: true},
		{name: "padded decimal string and float", a: " 5.50 ", b: 5.5, same: true},
		{name: "string and json number", a: "12.0", b: json.Number("12"), same: true},
		{name: "non numeric strings stay strings", a: "abc", b: "ABC", same: false},
		{name: "different numbers", a: "5", b: 6, same: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				require.Equal(t, DistinctValue(tt.a), DistinctValue(tt.b))
			} else {
				require.NotEqual(t, DistinctValue(tt.a), DistinctValue(tt.b))
			}
		})
	}
}

func TestCountDistinct_NumericStringAndNumberAreOneValue(t *testing.T) {
	s := fold(Spec{Function: FuncCountDistinct, Field: "code"},
		map[string]any{"code": "5"},
		map[string]any{"code": 5},
		map[string]any{"code": json.Number("5.0")},
		map[string]any{"code": "x"},
	)
	require.Equal(t, ptr(2), s.Finalize())
}
