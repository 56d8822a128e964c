package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBodyBytes = 2048

// TokenProvider supplies bearer tokens. Acquisition and caching live outside
// this package.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// HTTPSource fetches OData collection pages over HTTP.
type HTTPSource struct {
	root        *url.URL
	client      *http.Client
	tokens      TokenProvider
	maxPageSize int
}

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	BaseURL     string
	Tokens      TokenProvider
	MaxPageSize int
	Client      *http.Client
}

// NewHTTPSource creates an HTTP backed Source.
func NewHTTPSource(opts HTTPOptions) (*HTTPSource, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("remote base url is required")
	}
	root, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse remote base url: %w", err)
	}
	if !root.IsAbs() || root.Host == "" {
		return nil, fmt.Errorf("remote base url %q must be absolute", opts.BaseURL)
	}
	// Relative references resolve beneath the service root, not beside it.
	if !strings.HasSuffix(root.Path, "/") {
		root.Path += "/"
		if root.RawPath != "" {
			root.RawPath += "/"
		}
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSource{
		root:        root,
		client:      client,
		tokens:      opts.Tokens,
		maxPageSize: opts.MaxPageSize,
	}, nil
}

// resolve turns a query path or nextLink into an absolute URL. Query paths
// and relative nextLinks sit under the service root; a nextLink starting
// with "/" is host-relative and an absolute one is used as-is.
func (s *HTTPSource) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse request path %q: %w", path, err)
	}
	return s.root.ResolveReference(ref).String(), nil
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, path string) (*RawResponse, error) {
	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := s.newRequest(ctx, http.MethodGet, target)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Path:       path,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var out RawResponse
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response for %s: %w", path, err)
	}
	return &out, nil
}

// Ping checks that the service root answers.
func (s *HTTPSource) Ping(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet, s.root.String())
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	if resp.StatusCode >= 500 {
		return &StatusError{StatusCode: resp.StatusCode, Path: "/"}
	}
	return nil
}

func (s *HTTPSource) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.maxPageSize > 0 {
		req.Header.Set("Prefer", "odata.maxpagesize="+strconv.Itoa(s.maxPageSize))
	}
	if s.tokens != nil {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP-date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
