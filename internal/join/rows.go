package join

import (
	"strings"

	coreagg "github.com/aevon-lab/aevon-analytics/internal/core/aggregation"
	"github.com/aevon-lab/aevon-analytics/internal/remote"
)

// rowBuilder shapes output rows. Flattened rows carry secondary fields as
// "<prefix><field>"; nested rows carry the matches under nestUnder.
type rowBuilder struct {
	prefix    string
	nestUnder string
	flatten   bool
	omitKey   string
}

func (b rowBuilder) primaryOnly(primary remote.Record) remote.Record {
	return copyRecord(primary, "")
}

func (b rowBuilder) merge(primary, secondary remote.Record) remote.Record {
	row := copyRecord(primary, "")
	for k, v := range secondary {
		if strings.HasPrefix(k, "@") || k == b.omitKey {
			continue
		}
		row[b.prefix+k] = v
	}
	return row
}

func (b rowBuilder) nested(primary remote.Record, matches []remote.Record) remote.Record {
	row := copyRecord(primary, "")
	list := make([]remote.Record, 0, len(matches))
	for _, m := range matches {
		list = append(list, copyRecord(m, ""))
	}
	row[b.nestUnder] = list
	return row
}

// copyRecord copies r without drop and without "@odata" annotations.
func copyRecord(r remote.Record, drop string) remote.Record {
	out := make(remote.Record, len(r))
	for k, v := range r {
		if (drop != "" && k == drop) || strings.HasPrefix(k, "@") {
			continue
		}
		out[k] = v
	}
	return out
}

// nestedRecords normalizes an expanded navigation value: a single object, a
// collection, or null.
func nestedRecords(v any) []remote.Record {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return []remote.Record{val}
	case []map[string]any:
		return val
	case []any:
		out := make([]remote.Record, 0, len(val))
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// distinctKeys returns the non-null key values of records in first-seen order.
func distinctKeys(records []remote.Record, key string) []any {
	seen := make(map[string]struct{})
	var out []any
	for _, r := range records {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		enc := coreagg.EncodeValue(v)
		if _, dup := seen[enc]; dup {
			continue
		}
		seen[enc] = struct{}{}
		out = append(out, v)
	}
	return out
}

// multiMap indexes records by canonical key encoding, one key to many rows.
type multiMap struct {
	m    map[string][]remote.Record
	size int
}

func newMultiMap() *multiMap {
	return &multiMap{m: make(map[string][]remote.Record)}
}

func (mm *multiMap) add(key any, r remote.Record) {
	if key == nil {
		return
	}
	enc := coreagg.EncodeValue(key)
	mm.m[enc] = append(mm.m[enc], r)
	mm.size++
}

func (mm *multiMap) get(key any) []remote.Record {
	if key == nil {
		return nil
	}
	return mm.m[coreagg.EncodeValue(key)]
}
