package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/infrastructure/docstore"
)

var (
	_ importer.Repository = (*Store)(nil)
	_ browse.Reader       = (*Store)(nil)
)

type collection struct {
	docs  map[string]export.Record
	order []string
}

// Store is a thread-safe document store useful for demos, tests and the offline importer.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]export.Record)}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// EnsureIndexes is a no-op; the key map already enforces uniqueness.
func (s *Store) EnsureIndexes(context.Context) error {
	return nil
}

// FindOneByKey returns a copy of the document stored under key, or nil.
func (s *Store) FindOneByKey(_ context.Context, collection, key string) (export.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}
	doc, ok := c.docs[key]
	if !ok {
		return nil, nil
	}
	return copyDoc(doc, nil), nil
}

// Upsert merges doc into the document stored under key and adds batchID to its provenance set.
func (s *Store) Upsert(_ context.Context, collection, key string, doc export.Record, batchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	existing, found := c.docs[key]
	if !found {
		existing = export.Record{}
		c.order = append(c.order, key)
	}
	for k, v := range doc {
		if k == "_id" || k == export.FieldImportIDs {
			continue
		}
		existing[k] = v
	}
	existing[export.FieldUUID] = key

	ids, _ := existing[export.FieldImportIDs].([]string)
	if !slices.Contains(ids, batchID) {
		ids = append(slices.Clone(ids), batchID)
	}
	existing[export.FieldImportIDs] = ids
	c.docs[key] = existing
	return !found, nil
}

// InsertImportRecord appends a history entry keyed by its import id.
func (s *Store) InsertImportRecord(_ context.Context, record *importer.ImportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(export.CollectionImportHistory)
	if _, exists := c.docs[record.ImportID]; !exists {
		c.order = append(c.order, record.ImportID)
	}
	c.docs[record.ImportID] = docstore.HistoryRecord(record)
	return nil
}

// List returns a sorted page of copies. Ties keep insertion order.
func (s *Store) List(_ context.Context, collection string, opts browse.ListOptions) ([]export.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []export.Record{}, nil
	}
	docs := make([]export.Record, 0, len(c.order))
	for _, key := range c.order {
		docs = append(docs, c.docs[key])
	}
	if opts.SortField != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			cmp := docstore.Compare(docs[i][opts.SortField], docs[j][opts.SortField])
			if opts.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	start := min(max(opts.Skip, 0), len(docs))
	end := len(docs)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, len(docs))
	}
	out := make([]export.Record, 0, end-start)
	for _, doc := range docs[start:end] {
		out = append(out, copyDoc(doc, opts.Exclude))
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[collection]; ok {
		return int64(len(c.docs)), nil
	}
	return 0, nil
}

// Distinct returns the unique string values of field in first-seen order.
func (s *Store) Distinct(_ context.Context, collection, field string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{}
	c, ok := s.collections[collection]
	if !ok {
		return out, nil
	}
	seen := make(map[string]struct{})
	for _, key := range c.order {
		v, ok := c.docs[key][field].(string)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

func copyDoc(doc export.Record, exclude []string) export.Record {
	out := make(export.Record, len(doc))
	for k, v := range doc {
		if slices.Contains(exclude, k) {
			continue
		}
		if ids, ok := v.([]string); ok {
			v = slices.Clone(ids)
		}
		out[k] = v
	}
	return out
}
