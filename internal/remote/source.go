package remote

import "context"

// Record is one decoded entity from a collection response.
type Record = map[string]any

// RawResponse is the decoded body of one collection fetch.
type RawResponse struct {
	Value    []Record `json:"value"`
	Count    *int64   `json:"@odata.count,omitempty"`
	NextLink string   `json:"@odata.nextLink,omitempty"`
}

// Page is one fetched page plus its continuation cursor.
// NextCursor is empty on the last page.
type Page struct {
	Records    []Record
	NextCursor string
	TotalCount *int64
}

// Source is the authenticated remote data source. path is either a query
// path built by Query.Path or an opaque continuation cursor returned in a
// previous response. Implementations must honor ctx cancellation.
type Source interface {
	Fetch(ctx context.Context, path string) (*RawResponse, error)
}

// HealthChecker is implemented by sources that can report reachability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
