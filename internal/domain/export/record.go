package export

import (
	"encoding/json"
	"math"
)

// Record is a raw decoded JSON object.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the first string value among keys.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		if s, ok := r[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Records returns the first non-empty list of objects among keys.
func (r Record) Records(keys ...string) []Record {
	for _, k := range keys {
		if list, ok := asRecords(r[k]); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

// AsRecord converts map-like values into a Record.
func AsRecord(v any) (Record, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case map[string]any:
		return Record(t), true
	}
	return nil, false
}

func asRecords(v any) ([]Record, bool) {
	switch t := v.(type) {
	case []Record:
		return t, true
	case []map[string]any:
		out := make([]Record, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	case []any:
		out := make([]Record, 0, len(t))
		for _, item := range t {
			rec, ok := AsRecord(item)
			if !ok {
				return nil, false
			}
			out = append(out, rec)
		}
		return out, true
	}
	return nil, false
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	}
	return 0, false
}

// fields reads typed values out of a record and remembers which keys it consumed.
// A key whose value has the wrong shape is left unconsumed so it survives in Extra.
type fields struct {
	rec  Record
	used map[string]struct{}
}

func newFields(rec Record) *fields {
	return &fields{rec: rec, used: make(map[string]struct{}, len(rec))}
}

func (f *fields) take(key string) {
	f.used[key] = struct{}{}
}

func (f *fields) str(key string) *string {
	s, ok := f.rec[key].(string)
	if !ok {
		return nil
	}
	f.take(key)
	return &s
}

func (f *fields) boolean(key string) *bool {
	b, ok := f.rec[key].(bool)
	if !ok {
		return nil
	}
	f.take(key)
	return &b
}

func (f *fields) integer(key string) *int64 {
	n, ok := asInt(f.rec[key])
	if !ok {
		return nil
	}
	f.take(key)
	return &n
}

func (f *fields) object(key string) Record {
	rec, ok := AsRecord(f.rec[key])
	if !ok || len(rec) == 0 {
		return nil
	}
	f.take(key)
	return rec
}

// records consumes non-empty object lists only; an empty list is re-emitted verbatim from Extra.
func (f *fields) records(key string) []Record {
	list, ok := asRecords(f.rec[key])
	if !ok || len(list) == 0 {
		return nil
	}
	f.take(key)
	return list
}

func (f *fields) strs(key string) []string {
	raw, ok := f.rec[key].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	f.take(key)
	return out
}

func (f *fields) extra() map[string]any {
	if len(f.used) == len(f.rec) {
		return nil
	}
	out := make(map[string]any, len(f.rec)-len(f.used))
	for k, v := range f.rec {
		if _, ok := f.used[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// marshalWithExtra encodes v and merges extra keys that v did not emit itself.
func marshalWithExtra(v any, extra map[string]any) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return base, err
	}
	merged := make(map[string]json.RawMessage, len(extra))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := merged[k]; ok {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}
