//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
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
	"github.com/aevon-lab/aevon-analytics/internal/schema"
	schemaapi "github.com/aevon-lab/aevon-analytics/internal/schema/api"
	"github.com/aevon-lab/aevon-analytics/internal/schema/formats/protobuf"
	"github.com/aevon-lab/aevon-analytics/internal/schema/formats/yaml"
	schemaStorage "github.com/aevon-lab/aevon-analytics/internal/schema/storage"
	"github.com/aevon-lab/aevon-analytics/internal/server"
	"github.com/stretchr/testify/require"
)

const testToken = "integration-token"

// odataServer serves a remotetest.Fake over HTTP under /odata, enforcing
// bearer auth and optionally failing the first n requests with 503.
type odataServer struct {
	*httptest.Server
	fake      *remotetest.Fake
	requests  atomic.Int32
	failFirst int32
}

func newODataServer(t *testing.T, fake *remotetest.Fake) *odataServer {
	t.Helper()
	o := &odataServer{fake: fake}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.Close)
	return o
}

func (o *odataServer) serve(w http.ResponseWriter, r *http.Request) {
	n := o.requests.Add(1)
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		http.Error(w, `{"error":{"code":"Unauthorized"}}`, http.StatusUnauthorized)
		return
	}
	if n <= o.failFirst {
		w.Header().Set("Retry-After", "0")
		http.Error(w, `{"error":{"code":"ServiceUnavailable"}}`, http.StatusServiceUnavailable)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/odata/")
	if path == "" || path == "/odata" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	resp, err := o.fake.Fetch(r.Context(), path)
	if err != nil {
		var se *remote.StatusError
		if errors.As(err, &se) {
			http.Error(w, se.Body, se.StatusCode)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body := map[string]any{"value": resp.Value}
	if resp.Count != nil {
		body["@odata.count"] = *resp.Count
	}
	if resp.NextLink != "" {
		// Absolute links exercise the source's nextLink resolution.
		body["@odata.nextLink"] = o.URL + "/odata/" + resp.NextLink
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

const customerEntity = `
entity: Customer
entitySet: customers
fields:
  number: string!
  name: string
  region: string
`

const invoiceEntity = `
syntax = "proto3";
package sales;

message SalesInvoice {
  string id = 1;
  string customer_number = 2;
  double amount = 3;
}
`

type harness struct {
	api    *httptest.Server
	remote *odataServer
}

func startHarness(t *testing.T, token string, failFirst int32) *harness {
	t.Helper()

	fake := remotetest.NewFake(3)
	regions := []string{"north", "south"}
	for i := 1; i <= 4; i++ {
		fake.Add("customers", remote.Record{
			"number": fmt.Sprintf("C%d", i),
			"name":   fmt.Sprintf("Customer %d", i),
			"region": regions[i%2],
		})
	}
	for i := 1; i <= 10; i++ {
		fake.Add("salesInvoices", remote.Record{
			"id":             fmt.Sprintf("INV-%02d", i),
			"customerNumber": fmt.Sprintf("C%d", i%3+1),
			"amount":         json.Number(fmt.Sprintf("%d.10", i)),
		})
	}
	odata := newODataServer(t, fake)
	odata.failFirst = failFirst

	entityDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(entityDir, "Customer.yaml"), []byte(customerEntity), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(entityDir, "SalesInvoice.proto"), []byte(invoiceEntity), 0o644))

	formats := schema.NewFormatRegistry()
	formats.RegisterFormat(schema.FormatYaml, yaml.NewCompiler())
	formats.RegisterFormat(schema.FormatProtobuf, protobuf.NewCompiler())
	registry := schema.NewRegistry(schemaStorage.NewFileSystemRepository(entityDir), formats)

	source, err := remote.NewHTTPSource(remote.HTTPOptions{
		BaseURL:     odata.URL + "/odata",
		Tokens:      remote.StaticToken(token),
		MaxPageSize: 3,
	})
	require.NoError(t, err)
	pager := remote.NewPager(remote.NewRetrier(source, remote.RetryPolicy{
		MaxRetries:     3,
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}))

	svc := analytics.NewService(
		aggregation.New(pager, registry, aggregation.Options{}),
		join.New(pager, registry, join.Options{}),
		2,
	)
	srv := server.New("127.0.0.1:0", source, "release")
	svc.RegisterRoutes(srv.Engine)
	schemaapi.NewService(registry).RegisterRoutes(srv.Engine)

	api := httptest.NewServer(srv.Engine)
	t.Cleanup(api.Close)
	return &harness{api: api, remote: odata}
}

func (h *harness) post(t *testing.T, path string, body any, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.api.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestAnalyticsAPI_AggregateAcrossPages(t *testing.T) {
	h := startHarness(t, testToken, 0)

	var resp aggregation.Response
	status := h.post(t, "/v1/aggregate", aggregation.Request{
		Entity: "SalesInvoice",
		Specs: []coreagg.Spec{
			{Function: coreagg.FuncSum, Field: "amount", Alias: "total"},
			{Function: coreagg.FuncCount, Field: "*"},
		},
		GroupBy:  []string{"customerNumber"},
		OrderBy:  "customerNumber",
		Accurate: true,
	}, &resp)
	require.Equal(t, http.StatusOK, status)

	require.Equal(t, 10, resp.Progress.RecordsProcessed)
	require.Equal(t, 4, resp.Progress.PagesFetched)
	require.Len(t, resp.Results, 3)

	// C1: 3,6,9  C2: 1,4,7,10  C3: 2,5,8
	want := map[string][2]float64{"C1": {18.3, 3}, "C2": {22.4, 4}, "C3": {15.3, 3}}
	for _, r := range resp.Results {
		key := r.GroupKey["customerNumber"].(string)
		total, ok := r.Value("total")
		require.True(t, ok)
		require.InDelta(t, want[key][0], total, 1e-9)
		count, _ := r.Value("count_all")
		require.Equal(t, want[key][1], count)
	}
}

func TestAnalyticsAPI_RetriesTransientFailures(t *testing.T) {
	h := startHarness(t, testToken, 2)

	var resp aggregation.Response
	status := h.post(t, "/v1/aggregate", aggregation.Request{
		Entity: "customers",
		Specs:  []coreagg.Spec{{Function: coreagg.FuncCount, Field: "*"}},
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	count, _ := resp.Results[0].Value("count_all")
	require.Equal(t, 4.0, count)
	require.GreaterOrEqual(t, h.remote.requests.Load(), int32(4))
}

func TestAnalyticsAPI_RejectedCredentials(t *testing.T) {
	h := startHarness(t, "wrong-token", 0)

	var body httperr.ErrorResponse
	status := h.post(t, "/v1/aggregate", aggregation.Request{
		Entity: "customers",
		Specs:  []coreagg.Spec{{Function: coreagg.FuncCount, Field: "*"}},
	}, &body)
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, httperr.HttpUpstreamAuthError, body.ErrorType)
	require.Equal(t, int32(1), h.remote.requests.Load())
}

func TestAnalyticsAPI_ClientJoinWithMetadata(t *testing.T) {
	h := startHarness(t, testToken, 0)

	var res join.Result
	status := h.post(t, "/v1/join", join.Request{
		Primary:   join.EntitySource{Entity: "Customer", Key: "number", Select: []string{"number", "region"}},
		Secondary: join.EntitySource{Entity: "SalesInvoice", Key: "customerNumber", Select: []string{"id", "amount"}},
		JoinType:  join.Left,
	}, &res)
	require.Equal(t, http.StatusOK, status)

	require.Equal(t, join.StrategyClient, res.Strategy)
	require.True(t, res.InFilterApplied)
	require.Equal(t, 4, res.PrimaryCount)
	require.Equal(t, 10, res.SecondaryCount)
	// C4 has no invoices and survives the left join.
	require.Equal(t, 11, res.JoinedCount)
	for _, row := range res.Records {
		require.Contains(t, row, "number")
		if row["number"] != "C4" {
			require.Contains(t, row, "SalesInvoice_amount")
		}
	}
}

func TestAnalyticsAPI_JoinValidationSuggestsFields(t *testing.T) {
	h := startHarness(t, testToken, 0)

	var body httperr.ErrorResponse
	status := h.post(t, "/v1/join", join.Request{
		Primary:   join.EntitySource{Entity: "Customer", Key: "numbr"},
		Secondary: join.EntitySource{Entity: "SalesInvoice", Key: "customerNumber"},
	}, &body)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, httperr.HttpInvalidRequestError, body.ErrorType)
	require.Contains(t, body.Message, "did you mean number?")
	require.Equal(t, int32(0), h.remote.requests.Load())
}

func TestAnalyticsAPI_Batch(t *testing.T) {
	h := startHarness(t, testToken, 0)

	var resp analytics.BatchResponse
	status := h.post(t, "/v1/batch", analytics.BatchRequest{Items: []analytics.BatchItem{
		{ID: "by-region", Aggregate: &aggregation.Request{
			Entity:  "Customer",
			Specs:   []coreagg.Spec{{Function: coreagg.FuncCount, Field: "*"}},
			GroupBy: []string{"region"},
		}},
		{ID: "missing", Aggregate: &aggregation.Request{
			Entity: "warehouses",
			Specs:  []coreagg.Spec{{Function: coreagg.FuncCount, Field: "*"}},
		}},
	}}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Results, 2)
	require.Len(t, resp.Results[0].Aggregate.Results, 2)
	require.Equal(t, http.StatusNotFound, resp.Results[1].Status)
	require.Equal(t, 1, resp.Succeeded)
	require.Equal(t, 1, resp.Failed)
}

func TestAnalyticsAPI_EntityCatalog(t *testing.T) {
	h := startHarness(t, testToken, 0)

	resp, err := http.Get(h.api.URL + "/v1/entities")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body schemaapi.EntityListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 2, body.Count)
	require.Equal(t, "Customer", body.Entities[0].Name)
	require.Equal(t, "SalesInvoice", body.Entities[1].Name)
	require.Equal(t, "salesInvoices", body.Entities[1].EntitySet)
}

func TestAnalyticsAPI_Health(t *testing.T) {
	h := startHarness(t, testToken, 0)

	resp, err := http.Get(h.api.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
