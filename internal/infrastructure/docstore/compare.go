// Package docstore holds helpers shared by the document store backends.
package docstore

import (
	"encoding/json"
	"strings"
	"time"

	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/domain/importer"
)

// Compare orders two field values the way a document store sorts them:
// missing < numbers < strings < booleans < timestamps.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		fa, fb := number(a), number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case 4:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case json.Number, float64, float32, int, int32, int64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	case time.Time:
		return 4
	}
	return 5
}

func number(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}

// HistoryRecord flattens an import record into the document shape returned by browse.
func HistoryRecord(r *importer.ImportRecord) export.Record {
	rec := export.Record{
		"import_id":     r.ImportID,
		"account_name":  r.AccountName,
		"timestamp":     r.Timestamp,
		"files_found":   r.FilesFound,
		"conversations": countsRecord(r.Conversations),
		"users":         countsRecord(r.Users),
		"projects":      countsRecord(r.Projects),
		"status":        r.Status,
	}
	if r.Error != "" {
		rec["error"] = r.Error
	}
	if len(r.RecordErrors) > 0 {
		list := make([]any, 0, len(r.RecordErrors))
		for _, e := range r.RecordErrors {
			list = append(list, map[string]any{"file": e.File, "index": e.Index, "reason": e.Reason})
		}
		rec["record_errors"] = list
	}
	return rec
}

func countsRecord(c importer.Counts) map[string]any {
	return map[string]any{"loaded": c.Loaded, "duplicates": c.Duplicates}
}
