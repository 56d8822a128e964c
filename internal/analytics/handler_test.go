package analytics_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aevon-lab/aevon-analytics/internal/aggregation"
	"github.com/aevon-lab/aevon-analytics/internal/analytics"
	coreagg "github.com/aevon-lab/aevon-analytics/internal/core/aggregation"
	httperr "github.com/aevon-lab/aevon-analytics/internal/core/errors"
	"github.com/aevon-lab/aevon-analytics/internal/join"
	"github.com/aevon-lab/aevon-analytics/internal/remote"
	"github.com/aevon-lab/aevon-analytics/internal/remote/remotetest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newFake() *remotetest.Fake {
	return remotetest.NewFake(2).
		Add("customers",
			remote.Record{"number": "C1", "region": "north"},
			remote.Record{"number": "C2", "region": "south"},
		).
		Add("invoices",
			remote.Record{"customerNumber": "C1", "amount": 10},
			remote.Record{"customerNumber": "C1", "amount": 5},
			remote.Record{"customerNumber": "C2", "amount": 7},
		)
}

func newRouter(src remote.Source) *gin.Engine {
	gin.SetMode(gin.TestMode)

	retrier := remote.NewRetrier(src, remote.DefaultRetryPolicy()).
		WithSleep(func(context.Context, time.Duration) error { return nil })
	pager := remote.NewPager(retrier)

	svc := analytics.NewService(
		aggregation.New(pager, nil, aggregation.Options{}),
		join.New(pager, nil, join.Options{}),
		2,
	)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func post(r http.Handler, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) httperr.ErrorResponse {
	t.Helper()
	var body httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func sumRequest(entity string) aggregation.Request {
	return aggregation.Request{
		Entity: entity,
		Specs:  []coreagg.Spec{{Function: coreagg.FuncSum, Field: "amount"}},
	}
}

func TestHandleAggregate_Success(t *testing.T) {
	r := newRouter(newFake())

	resp := post(r, "/v1/aggregate", `{"entity":"invoices","aggregations":[{"function":"sum","field":"amount","alias":"total"}],"group_by":["customerNumber"],"order_by":"total","descending":true}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body aggregation.Response
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	require.Equal(t, "C1", body.Results[0].GroupKey["customerNumber"])
	total, ok := body.Results[0].Value("total")
	require.True(t, ok)
	require.Equal(t, 15.0, total)
	require.Equal(t, 3, body.Progress.RecordsProcessed)
	require.NotEmpty(t, body.Progress.RequestID)
}

func TestHandleAggregate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		hook      func(call int, path string) error
		body      any
		status    int
		errorType string
	}{
		{
			name:      "malformed json",
			body:      `{"entity":`,
			status:    http.StatusBadRequest,
			errorType: httperr.HttpInvalidJsonError,
		},
		{
			name:      "no aggregations",
			body:      aggregation.Request{Entity: "invoices"},
			status:    http.StatusBadRequest,
			errorType: httperr.HttpInvalidRequestError,
		},
		{
			name:      "unknown entity",
			body:      sumRequest("nope"),
			status:    http.StatusNotFound,
			errorType: httperr.HttpEntityNotFoundError,
		},
		{
			name: "rejected credentials",
			hook: func(int, string) error {
				return &remote.StatusError{StatusCode: http.StatusUnauthorized, Path: "invoices"}
			},
			body:      sumRequest("invoices"),
			status:    http.StatusBadGateway,
			errorType: httperr.HttpUpstreamAuthError,
		},
		{
			name: "remote unavailable",
			hook: func(int, string) error {
				return &remote.StatusError{StatusCode: http.StatusServiceUnavailable, Path: "invoices"}
			},
			body:      sumRequest("invoices"),
			status:    http.StatusServiceUnavailable,
			errorType: httperr.HttpUpstreamUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFake()
			fake.Hook = tc.hook
			resp := post(newRouter(fake), "/v1/aggregate", tc.body)

			require.Equal(t, tc.status, resp.Code, resp.Body.String())
			require.Equal(t, tc.errorType, decodeError(t, resp).ErrorType)
		})
	}
}

func TestHandleJoin(t *testing.T) {
	t.Run("client join", func(t *testing.T) {
		resp := post(newRouter(newFake()), "/v1/join", join.Request{
			Primary:   join.EntitySource{Entity: "customers", Key: "number"},
			Secondary: join.EntitySource{Entity: "invoices", Key: "customerNumber"},
			JoinType:  join.Inner,
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		var body join.Result
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		require.Equal(t, join.StrategyClient, body.Strategy)
		require.Equal(t, 3, body.JoinedCount)
		require.True(t, body.InFilterApplied)
	})

	t.Run("missing key", func(t *testing.T) {
		resp := post(newRouter(newFake()), "/v1/join", join.Request{
			Primary:   join.EntitySource{Entity: "customers"},
			Secondary: join.EntitySource{Entity: "invoices", Key: "customerNumber"},
		})
		require.Equal(t, http.StatusBadRequest, resp.Code)
		body := decodeError(t, resp)
		require.Equal(t, httperr.HttpInvalidRequestError, body.ErrorType)
		require.Equal(t, "primary.key", body.Details.(map[string]interface{})["field"])
	})

	t.Run("expand without metadata", func(t *testing.T) {
		resp := post(newRouter(newFake()), "/v1/join", join.Request{
			Primary:   join.EntitySource{Entity: "customers", Key: "number"},
			Secondary: join.EntitySource{Entity: "invoices", Key: "customerNumber"},
			Strategy:  join.StrategyExpand,
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		require.Equal(t, httperr.HttpPlanningFailedError, decodeError(t, resp).ErrorType)
	})
}

func TestHandleBatch_PreservesOrderAndIsolatesFailures(t *testing.T) {
	fake := newFake()
	resp := post(newRouter(fake), "/v1/batch", analytics.BatchRequest{Items: []analytics.BatchItem{
		{ID: "totals", Aggregate: ptr(sumRequest("invoices"))},
		{ID: "broken", Aggregate: &aggregation.Request{Entity: "invoices"}},
		{ID: "joined", Join: &join.Request{
			Primary:   join.EntitySource{Entity: "customers", Key: "number"},
			Secondary: join.EntitySource{Entity: "invoices", Key: "customerNumber"},
		}},
		{ID: "missing", Aggregate: ptr(sumRequest("ghosts"))},
	}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body analytics.BatchResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotEmpty(t, body.RequestID)
	require.Equal(t, 2, body.Succeeded)
	require.Equal(t, 2, body.Failed)
	require.Len(t, body.Results, 4)

	wantIDs := []string{"totals", "broken", "joined", "missing"}
	wantStatus := []int{http.StatusOK, http.StatusBadRequest, http.StatusOK, http.StatusNotFound}
	for i, r := range body.Results {
		require.Equal(t, i, r.Index)
		require.Equal(t, wantIDs[i], r.ID)
		require.Equal(t, wantStatus[i], r.Status)
	}

	total, ok := body.Results[0].Aggregate.Results[0].Value("sum_amount")
	require.True(t, ok)
	require.Equal(t, 22.0, total)
	require.Equal(t, httperr.HttpInvalidRequestError, body.Results[1].Error.ErrorType)
	require.Equal(t, 3, body.Results[2].Join.JoinedCount)
	require.Equal(t, httperr.HttpEntityNotFoundError, body.Results[3].Error.ErrorType)
}

func TestHandleBatch_RejectsMalformedBatches(t *testing.T) {
	tests := []struct {
		name string
		req  analytics.BatchRequest
	}{
		{name: "empty", req: analytics.BatchRequest{}},
		{name: "item without operation", req: analytics.BatchRequest{Items: []analytics.BatchItem{{ID: "x"}}}},
		{name: "item with both operations", req: analytics.BatchRequest{Items: []analytics.BatchItem{{
			Aggregate: ptr(sumRequest("invoices")),
			Join:      &join.Request{},
		}}}},
		{name: "too many items", req: analytics.BatchRequest{Items: make([]analytics.BatchItem, analytics.MaxBatchItems+1)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFake()
			resp := post(newRouter(fake), "/v1/batch", tc.req)
			require.Equal(t, http.StatusBadRequest, resp.Code)
			require.Equal(t, httperr.HttpInvalidRequestError, decodeError(t, resp).ErrorType)
			require.Empty(t, fake.Calls())
		})
	}
}

// gaugeAggregator records the peak number of concurrent calls.
type gaugeAggregator struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
}

func (g *gaugeAggregator) Aggregate(ctx context.Context, req aggregation.Request) (*aggregation.Response, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
	return &aggregation.Response{Results: []aggregation.Result{}, Progress: aggregation.Progress{RequestID: req.Entity}}, nil
}

func TestBatch_BoundsConcurrency(t *testing.T) {
	agg := &gaugeAggregator{}
	svc := analytics.NewService(agg, nil, 2)

	items := make([]analytics.BatchItem, 8)
	for i := range items {
		items[i] = analytics.BatchItem{Aggregate: ptr(sumRequest(strings.Repeat("e", i+1)))}
	}

	resp, err := svc.Batch(context.Background(), analytics.BatchRequest{Items: items})
	require.NoError(t, err)
	require.Equal(t, int32(8), agg.calls.Load())
	require.LessOrEqual(t, agg.peak, 2)
	require.Equal(t, 8, resp.Succeeded)
	for i, r := range resp.Results {
		require.Equal(t, strings.Repeat("e", i+1), r.Aggregate.Progress.RequestID)
	}
}

func ptr[T any](v T) *T { return &v }
