// Package remotetest provides an in-memory OData collection source for tests.
package remotetest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/aevon-lab/aevon-analytics/internal/core/aggregation"
	"github.com/aevon-lab/aevon-analytics/internal/remote"
)

// Fake serves entity sets from memory with server-driven paging. It
// understands $filter (eq terms joined by or/and), $select, $top, $skip,
// $count and its own $skiptoken continuation. $expand is accepted but not
// evaluated: fixtures embed nested records directly.
type Fake struct {
	mu       sync.Mutex
	pageSize int
	sets     map[string][]remote.Record
	calls    []string

	// Hook runs before every fetch with the 1-based call number; a non-nil
	// error is returned instead of serving the page.
	Hook func(call int, path string) error
}

// NewFake creates a fake that returns at most pageSize records per page.
func NewFake(pageSize int) *Fake {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Fake{pageSize: pageSize, sets: make(map[string][]remote.Record)}
}

// Add appends records to an entity set.
func (f *Fake) Add(entity string, records ...remote.Record) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[entity] = append(f.sets[entity], records...)
	return f
}

// Calls returns every path fetched so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns fetched paths whose entity set is entity.
func (f *Fake) CallsFor(entity string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.SplitN(c, "?", 2)[0] == entity {
			out = append(out, c)
		}
	}
	return out
}

// Fetch implements remote.Source.
func (f *Fake) Fetch(ctx context.Context, path string) (*remote.RawResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	call := len(f.calls)
	hook := f.Hook
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(call, path); err != nil {
			return nil, err
		}
	}

	entity, rawQuery, _ := strings.Cut(path, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, &remote.StatusError{StatusCode: http.StatusBadRequest, Path: path, Body: err.Error()}
	}

	f.mu.Lock()
	all, ok := f.sets[entity]
	f.mu.Unlock()
	if !ok {
		return nil, &remote.StatusError{StatusCode: http.StatusNotFound, Path: path}
	}

	match, err := compileFilter(params.Get("$filter"))
	if err != nil {
		return nil, &remote.StatusError{StatusCode: http.StatusBadRequest, Path: path, Body: err.Error()}
	}
	var filtered []remote.Record
	for _, r := range all {
		if match(r) {
			filtered = append(filtered, r)
		}
	}

	skip := atoi(params.Get("$skip"))
	top := atoi(params.Get("$top"))
	window := filtered
	if skip > len(window) {
		skip = len(window)
	}
	window = window[skip:]
	if top > 0 && top < len(window) {
		window = window[:top]
	}

	pos := atoi(params.Get("$skiptoken"))
	if pos > len(window) {
		pos = len(window)
	}
	end := pos + f.pageSize
	if end > len(window) {
		end = len(window)
	}

	resp := &remote.RawResponse{}
	sel := splitList(params.Get("$select"))
	expand := expandNames(params.Get("$expand"))
	for _, r := range window[pos:end] {
		resp.Value = append(resp.Value, project(r, sel, expand))
	}
	if params.Get("$count") == "true" {
		n := int64(len(filtered))
		resp.Count = &n
	}
	if end < len(window) {
		next := url.Values{}
		for k, v := range params {
			next[k] = v
		}
		next.Set("$skiptoken", strconv.Itoa(end))
		resp.NextLink = entity + "?" + next.Encode()
	}
	return resp, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func expandNames(s string) map[string]bool {
	out := map[string]bool{}
	depth := 0
	start := 0
	for i, c := range s {
		switch c {
		case '(':
			if depth == 0 {
				out[strings.TrimSpace(s[start:i])] = true
			}
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if name := strings.TrimSpace(s[start:i]); name != "" && !strings.Contains(name, ")") {
					out[name] = true
				}
				start = i + 1
			}
		}
	}
	if depth == 0 {
		if name := strings.TrimSpace(s[start:]); name != "" && !strings.Contains(name, ")") {
			out[name] = true
		}
	}
	return out
}

func project(r remote.Record, sel []string, expand map[string]bool) remote.Record {
	out := make(remote.Record, len(r))
	if len(sel) == 0 {
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	for _, k := range sel {
		if v, ok := r[k]; ok {
			out[k] = v
		}
	}
	for k := range expand {
		if v, ok := r[k]; ok {
			out[k] = v
		}
	}
	return out
}

// compileFilter supports conjunctions of disjunctions of "field eq literal".
func compileFilter(filter string) (func(remote.Record) bool, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return func(remote.Record) bool { return true }, nil
	}
	type term struct {
		field string
		value string
	}
	var clauses [][]term
	for _, conj := range strings.Split(filter, " and ") {
		conj = strings.TrimSpace(conj)
		for strings.HasPrefix(conj, "(") && strings.HasSuffix(conj, ")") {
			conj = strings.TrimSpace(conj[1 : len(conj)-1])
		}
		var terms []term
		for _, disj := range strings.Split(conj, " or ") {
			parts := strings.SplitN(strings.TrimSpace(disj), " eq ", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("unsupported filter term %q", disj)
			}
			v, err := parseLiteral(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, err
			}
			terms = append(terms, term{field: strings.TrimSpace(parts[0]), value: aggregation.EncodeValue(v)})
		}
		clauses = append(clauses, terms)
	}
	return func(r remote.Record) bool {
		for _, terms := range clauses {
			ok := false
			for _, t := range terms {
				if aggregation.EncodeValue(r[t.field]) == t.value {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		return true
	}, nil
}

func parseLiteral(s string) (any, error) {
	switch {
	case s == "null":
		return nil, nil
	case s == "true" || s == "false":
		return s == "true", nil
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), nil
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return json.Number(s), nil
	}
	return nil, fmt.Errorf("unsupported literal %q", s)
}
