package remote

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Expansion embeds a navigation property with its own nested options.
type Expansion struct {
	Name   string
	Select []string
	Filter string
}

func (e Expansion) String() string {
	var opts []string
	if len(e.Select) > 0 {
		opts = append(opts, "$select="+strings.Join(e.Select, ","))
	}
	if e.Filter != "" {
		opts = append(opts, "$filter="+e.Filter)
	}
	if len(opts) == 0 {
		return e.Name
	}
	return e.Name + "(" + strings.Join(opts, ";") + ")"
}

// Query describes one collection request against an entity set.
type Query struct {
	Entity  string
	Filter  string
	Select  []string
	Expand  []Expansion
	OrderBy string
	Top     int
	Skip    int
	Count   bool
}

// Path renders the query as "<entity>?<options>" with a fixed option order
// so identical queries always produce identical paths.
func (q Query) Path() string {
	var parts []string
	add := func(k, v string) {
		parts = append(parts, k+"="+escape(v))
	}
	if q.Filter != "" {
		add("$filter", q.Filter)
	}
	if len(q.Select) > 0 {
		add("$select", strings.Join(q.Select, ","))
	}
	if len(q.Expand) > 0 {
		exp := make([]string, len(q.Expand))
		for i, e := range q.Expand {
			exp[i] = e.String()
		}
		add("$expand", strings.Join(exp, ","))
	}
	if q.OrderBy != "" {
		add("$orderby", q.OrderBy)
	}
	if q.Top > 0 {
		add("$top", strconv.Itoa(q.Top))
	}
	if q.Skip > 0 {
		add("$skip", strconv.Itoa(q.Skip))
	}
	if q.Count {
		add("$count", "true")
	}
	if len(parts) == 0 {
		return q.Entity
	}
	return q.Entity + "?" + strings.Join(parts, "&")
}

// escape percent-encodes an option value while keeping the OData punctuation
// readable in logs. Semicolons stay encoded since net/url rejects them as
// query separators.
func escape(v string) string {
	s := url.QueryEscape(v)
	r := strings.NewReplacer("+", "%20", "%24", "$", "%2C", ",", "%28", "(", "%29", ")", "%3D", "=", "%27", "'", "%2F", "/")
	return r.Replace(s)
}

// Literal renders a raw value as an OData literal.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(val), "'", "''") + "'"
	}
}

// InFilter renders "field IN (values)" as an or-chain of equality tests,
// which every OData v4 service accepts.
func InFilter(field string, values []any) string {
	if len(values) == 0 {
		return ""
	}
	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = fmt.Sprintf("%s eq %s", field, Literal(v))
	}
	return "(" + strings.Join(terms, " or ") + ")"
}

// AndFilters joins non-empty filters with "and", parenthesizing each.
func AndFilters(filters ...string) string {
	var nonEmpty []string
	for _, f := range filters {
		if strings.TrimSpace(f) != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return ""
	case 1:
		return nonEmpty[0]
	}
	for i, f := range nonEmpty {
		nonEmpty[i] = "(" + f + ")"
	}
	return strings.Join(nonEmpty, " and ")
}
