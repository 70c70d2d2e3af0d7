package browse

import (
	"context"

	"jan-server/services/archive-api/internal/domain/export"
)

// ListOptions controls a paged collection scan.
type ListOptions struct {
	SortField  string
	Descending bool
	Skip       int
	Limit      int
	Exclude    []string
}

// Reader is the narrow query contract browse needs from the document store.
// Returned records never carry the store's internal _id.
type Reader interface {
	FindOneByKey(ctx context.Context, collection, key string) (export.Record, error)
	List(ctx context.Context, collection string, opts ListOptions) ([]export.Record, error)
	Count(ctx context.Context, collection string) (int64, error)
	Distinct(ctx context.Context, collection, field string) ([]string, error)
}
