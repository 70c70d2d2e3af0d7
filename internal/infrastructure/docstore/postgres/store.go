// Package postgres stores imported entities as jsonb documents in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/infrastructure/database"
	"jan-server/services/archive-api/internal/infrastructure/database/entities"
	"jan-server/services/archive-api/internal/infrastructure/docstore"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

var (
	_ importer.Repository = (*Store)(nil)
	_ browse.Reader       = (*Store)(nil)
)

// documentTables maps entity collections to their tables. Only these names reach SQL text.
var documentTables = map[string]string{
	export.CollectionConversations: entities.ConversationDocument{}.TableName(),
	export.CollectionUsers:         entities.UserDocument{}.TableName(),
	export.CollectionProjects:      entities.ProjectDocument{}.TableName(),
}

// upsertSQL merges the incoming body over the stored one key by key and appends the
// batch id only when absent. xmax is zero for rows created by this statement.
const upsertSQL = `INSERT INTO %[1]s (natural_key, body, import_ids, created_at, updated_at)
VALUES (?, ?::jsonb, ?::jsonb, now(), now())
ON CONFLICT (natural_key) DO UPDATE SET
	body = %[1]s.body || EXCLUDED.body,
	import_ids = CASE
		WHEN %[1]s.import_ids @> EXCLUDED.import_ids THEN %[1]s.import_ids
		ELSE %[1]s.import_ids || EXCLUDED.import_ids
	END,
	updated_at = now()
RETURNING (xmax = 0) AS inserted`

type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "postgres-docstore").Logger()}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// EnsureIndexes migrates the schema; the unique natural_key index lives on the entities.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if err := database.AutoMigrate(ctx, s.db, s.log); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"migrate document tables", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b701")
	}
	return nil
}

func (s *Store) FindOneByKey(ctx context.Context, collection, key string) (export.Record, error) {
	table, err := tableFor(ctx, collection)
	if err != nil {
		return nil, err
	}
	var doc entities.Document
	err = s.db.WithContext(ctx).Table(table).Where("natural_key = ?", key).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(ctx, "find document", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b702")
	}
	rec, err := doc.EtoD()
	if err != nil {
		return nil, storageError(ctx, "decode document", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b703")
	}
	return rec, nil
}

func (s *Store) Upsert(ctx context.Context, collection, key string, doc export.Record, batchID string) (bool, error) {
	table, err := tableFor(ctx, collection)
	if err != nil {
		return false, err
	}
	body, err := json.Marshal(upsertBody(key, doc))
	if err != nil {
		return false, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeLoad,
			"encode document", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b704")
	}
	ids, _ := json.Marshal([]string{batchID})

	var inserted bool
	row := s.db.WithContext(ctx).Raw(fmt.Sprintf(upsertSQL, table), key, string(body), string(ids)).Row()
	if err := row.Scan(&inserted); err != nil {
		return false, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"upsert document", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b705", map[string]any{"collection": collection, "key": key})
	}
	return inserted, nil
}

func upsertBody(key string, doc export.Record) export.Record {
	body := make(export.Record, len(doc)+1)
	for k, v := range doc {
		if k == "_id" || k == export.FieldImportIDs {
			continue
		}
		body[k] = v
	}
	body[export.FieldUUID] = key
	return body
}

func (s *Store) InsertImportRecord(ctx context.Context, record *importer.ImportRecord) error {
	body, err := json.Marshal(docstore.HistoryRecord(record))
	if err != nil {
		return storageError(ctx, "encode import record", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b706")
	}
	row := entities.ImportHistory{
		ImportID:    record.ImportID,
		AccountName: record.AccountName,
		Timestamp:   record.Timestamp,
		Status:      record.Status,
		Body:        body,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return storageError(ctx, "insert import record", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b707")
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string, opts browse.ListOptions) ([]export.Record, error) {
	if collection == export.CollectionImportHistory {
		return s.listHistory(ctx, opts)
	}
	table, err := tableFor(ctx, collection)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Table(table)
	if len(opts.Exclude) > 0 {
		query = query.Select("id, natural_key, body - ?::text[] AS body, import_ids", pq.StringArray(opts.Exclude))
	}
	if opts.SortField != "" {
		query = query.Order(bodyOrder(opts.SortField, opts.Descending))
	}
	query = page(query.Order("id"), opts)

	var docs []entities.Document
	if err := query.Find(&docs).Error; err != nil {
		return nil, storageError(ctx, "list documents", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b708")
	}
	out := make([]export.Record, 0, len(docs))
	for i := range docs {
		rec, err := docs[i].EtoD()
		if err != nil {
			return nil, storageError(ctx, "decode document", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b709")
		}
		out = append(out, rec)
	}
	return out, nil
}

// listHistory sorts on the typed timestamp column instead of the jsonb copy.
func (s *Store) listHistory(ctx context.Context, opts browse.ListOptions) ([]export.Record, error) {
	query := s.db.WithContext(ctx).Model(&entities.ImportHistory{})
	switch opts.SortField {
	case "":
	case "timestamp":
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: opts.Descending})
	default:
		query = query.Order(bodyOrder(opts.SortField, opts.Descending))
	}
	query = page(query.Order("id"), opts)

	var rows []entities.ImportHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, storageError(ctx, "list import history", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b710")
	}
	out := make([]export.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := entities.DecodeRecord(row.Body)
		if err != nil {
			return nil, storageError(ctx, "decode import record", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b711")
		}
		rec["timestamp"] = row.Timestamp.UTC()
		for _, field := range opts.Exclude {
			delete(rec, field)
		}
		out = append(out, rec)
	}
	return out, nil
}

// bodyOrder sorts on a top-level body field. Missing values sort lowest in both directions.
func bodyOrder(field string, desc bool) clause.OrderBy {
	sql := "body -> ?::text ASC NULLS FIRST"
	if desc {
		sql = "body -> ?::text DESC NULLS LAST"
	}
	return clause.OrderBy{Expression: clause.Expr{SQL: sql, Vars: []any{field}, WithoutParentheses: true}}
}

func page(query *gorm.DB, opts browse.ListOptions) *gorm.DB {
	if opts.Skip > 0 {
		query = query.Offset(opts.Skip)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	return query
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	query := s.db.WithContext(ctx)
	if collection == export.CollectionImportHistory {
		query = query.Model(&entities.ImportHistory{})
	} else {
		table, err := tableFor(ctx, collection)
		if err != nil {
			return 0, err
		}
		query = query.Table(table)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return 0, storageError(ctx, "count documents", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b712")
	}
	return n, nil
}

// Distinct returns the unique string values of a top-level body field.
func (s *Store) Distinct(ctx context.Context, collection, field string) ([]string, error) {
	table, err := tableFor(ctx, collection)
	if err != nil {
		return nil, err
	}
	values := []string{}
	err = s.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT DISTINCT body ->> ?::text FROM %s WHERE jsonb_typeof(body -> ?::text) = 'string'", table), field, field).
		Scan(&values).Error
	if err != nil {
		return nil, storageError(ctx, "distinct values", err, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b713")
	}
	return values, nil
}

func tableFor(ctx context.Context, collection string) (string, error) {
	table, ok := documentTables[collection]
	if !ok {
		return "", platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("unknown collection %q", collection), nil, "2b7e5c90-4f1a-4d36-8a2e-91c0d6f3b714")
	}
	return table, nil
}

func storageError(ctx context.Context, msg string, err error, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage, msg, err, code)
}
