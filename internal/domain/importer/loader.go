package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

// Loader upserts the records of one payload file and counts loaded versus duplicate records.
type Loader struct {
	repo        Repository
	skipInvalid bool
	now         func() time.Time
	log         zerolog.Logger
}

// NewLoader returns a Loader. With skipInvalid a record without a natural key is
// reported in LoadResult.Skipped instead of aborting the payload.
func NewLoader(repo Repository, skipInvalid bool, log zerolog.Logger) *Loader {
	return &Loader{
		repo:        repo,
		skipInvalid: skipInvalid,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "entity-loader").Logger(),
	}
}

// LoadFile opens path and loads it as a payload of kind.
func (l *Loader) LoadFile(ctx context.Context, kind export.Kind, path, batchID, account string) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"open payload file", err, "8e2d4f6a-3c1b-4d7e-a9f0-6b5c4d3e2f01")
	}
	defer f.Close()
	return l.Load(ctx, kind, payloadName(path), f, batchID, account)
}

// Load decodes payload and upserts each record in order. Records are processed
// sequentially so a natural key repeated inside one payload counts as a duplicate.
func (l *Loader) Load(ctx context.Context, kind export.Kind, file string, payload io.Reader, batchID, account string) (LoadResult, error) {
	var result LoadResult
	collection := kind.Collection()
	if collection == "" {
		return result, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported payload kind %q", kind), nil, "8e2d4f6a-3c1b-4d7e-a9f0-6b5c4d3e2f02")
	}

	items, err := decodePayload(kind, payload)
	if err != nil {
		return result, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeLoad,
			fmt.Sprintf("decode %s payload", kind), err, "8e2d4f6a-3c1b-4d7e-a9f0-6b5c4d3e2f03",
			map[string]any{"file": file})
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeLoad,
				fmt.Sprintf("load %s payload interrupted", kind), err, "8e2d4f6a-3c1b-4d7e-a9f0-6b5c4d3e2f06",
				map[string]any{"file": file, "index": i})
		}

		rec, ok := export.AsRecord(item)
		if !ok {
			if err := l.reject(ctx, &result, file, i, "record is not a JSON object"); err != nil {
				return result, err
			}
			continue
		}
		key, ok := export.NaturalKey(kind, rec)
		if !ok {
			if err := l.reject(ctx, &result, file, i, missingKeyReason(kind)); err != nil {
				return result, err
			}
			continue
		}

		rec[export.FieldImportID] = batchID
		rec[export.FieldAccountName] = account
		rec[export.FieldImportedAt] = l.now()

		inserted, err := l.repo.Upsert(ctx, collection, key, rec, batchID)
		if err != nil {
			if platformerrors.IsErrorType(err, platformerrors.ErrorTypeStorage) {
				return result, err
			}
			return result, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
				fmt.Sprintf("upsert %s", collection), err, "8e2d4f6a-3c1b-4d7e-a9f0-6b5c4d3e2f04",
				map[string]any{"file": file, "key": key})
		}
		if inserted {
			result.Loaded++
		} else {
			result.Duplicates++
		}
	}

	l.log.Debug().
		Str("kind", string(kind)).
		Str("file", file).
		Int("loaded", result.Loaded).
		Int("duplicates", result.Duplicates).
		Int("skipped", len(result.Skipped)).
		Msg("payload loaded")
	return result, nil
}

func (l *Loader) reject(ctx context.Context, result *LoadResult, file string, index int, reason string) error {
	if l.skipInvalid {
		result.Skipped = append(result.Skipped, RecordError{File: file, Index: index, Reason: reason})
		l.log.Warn().Str("file", file).Int("index", index).Str("reason", reason).Msg("record skipped")
		return nil
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeLoad,
		fmt.Sprintf("%s at index %d", reason, index), nil, "8e2d4f6a-3c1b-4d7e-a9f0-6b5c4d3e2f05",
		map[string]any{"file": file, "index": index})
}

func missingKeyReason(kind export.Kind) string {
	if kind == export.KindUser {
		return "record has neither uuid nor id"
	}
	return "record has no uuid"
}

// decodePayload accepts a JSON array of records. A conversation payload may also be an
// export envelope object holding the list under conversations or data.
func decodePayload(kind export.Kind, payload io.Reader) ([]any, error) {
	dec := json.NewDecoder(payload)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if kind != export.KindConversation {
			break
		}
		if _, ok := v["conversations"]; !ok {
			if _, ok := v["data"]; !ok {
				break
			}
		}
		records := export.ConversationRecords(v)
		items := make([]any, len(records))
		for i, rec := range records {
			items[i] = map[string]any(rec)
		}
		return items, nil
	}
	return nil, fmt.Errorf("payload is not a JSON array")
}

func payloadName(path string) string {
	return filepath.Base(path)
}
