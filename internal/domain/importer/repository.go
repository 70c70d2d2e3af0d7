package importer

import (
	"context"

	"jan-server/services/archive-api/internal/domain/export"
)

// Repository is the document store contract used by the loader and orchestrator.
//
// Upsert must be an atomic test-and-set keyed by the natural key: it replaces every
// top-level field present in doc, adds batchID to the _import_ids set and stores
// uuid = key. Incoming _id and _import_ids values are never written through. The
// returned bool reports whether a new document was created.
type Repository interface {
	FindOneByKey(ctx context.Context, collection, key string) (export.Record, error)
	Upsert(ctx context.Context, collection, key string, doc export.Record, batchID string) (bool, error)
	InsertImportRecord(ctx context.Context, record *ImportRecord) error
	EnsureIndexes(ctx context.Context) error
}

// ArchiveStore retains uploaded archives after a successful import.
type ArchiveStore interface {
	Name() string
	Save(ctx context.Context, key string, path string) error
}
