// Package mongo stores imported entities in MongoDB, one collection per entity kind.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/infrastructure/docstore"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

var (
	_ importer.Repository = (*Store)(nil)
	_ browse.Reader       = (*Store)(nil)
)

const connectTimeout = 10 * time.Second

// Store implements importer.Repository and browse.Reader on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// Connect opens a client for uri and verifies the server is reachable.
func Connect(ctx context.Context, uri, database string, log zerolog.Logger) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeStorage,
			"connect to mongo", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e01")
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeStorage,
			"ping mongo", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e02")
	}

	log.Info().Str("database", database).Msg("connected to mongo")
	return &Store{
		client: client,
		db:     client.Database(database),
		log:    log.With().Str("component", "mongo-docstore").Logger(),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the natural key, lookup and history indexes. It is safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	uniqueKey := mongo.IndexModel{
		Keys:    bson.D{{Key: export.FieldUUID, Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	collections := map[string][]mongo.IndexModel{
		export.CollectionConversations: {
			uniqueKey,
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: export.FieldAccountName, Value: 1}}},
			{
				Keys:    bson.D{{Key: "name", Value: "text"}},
				Options: options.Index().SetLanguageOverride("_text_language"),
			},
		},
		export.CollectionUsers: {
			uniqueKey,
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		export.CollectionProjects: {
			uniqueKey,
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "name", Value: "text"}},
				Options: options.Index().SetLanguageOverride("_text_language"),
			},
		},
		export.CollectionImportHistory: {
			{
				Keys:    bson.D{{Key: "import_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
	}

	for name, indexes := range collections {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
				"create indexes", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e03", map[string]any{"collection": name})
		}
	}
	s.log.Debug().Msg("indexes ensured")
	return nil
}

// FindOneByKey returns the document whose uuid is key, or nil.
func (s *Store) FindOneByKey(ctx context.Context, collection, key string) (export.Record, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{export.FieldUUID: key},
		options.FindOne().SetProjection(bson.M{"_id": 0})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"find document", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e04")
	}
	return toRecord(doc), nil
}

// Upsert merges doc into the document keyed by key and adds batchID to its _import_ids set.
// Two writers racing on a new key can both miss the filter; the loser hits the unique
// index and is retried once as an update.
func (s *Store) Upsert(ctx context.Context, collection, key string, doc export.Record, batchID string) (bool, error) {
	filter := bson.M{export.FieldUUID: key}
	update := upsertUpdate(key, doc, batchID)
	opts := options.UpdateOne().SetUpsert(true)

	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, update, opts)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		res, err = s.db.Collection(collection).UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"upsert document", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e05", map[string]any{"collection": collection, "key": key})
	}
	return res.UpsertedCount > 0, nil
}

func upsertUpdate(key string, doc export.Record, batchID string) bson.M {
	set := bson.M{}
	for k, v := range doc {
		if k == "_id" || k == export.FieldImportIDs {
			continue
		}
		set[k] = v
	}
	set[export.FieldUUID] = key
	return bson.M{
		"$set":      set,
		"$addToSet": bson.M{export.FieldImportIDs: batchID},
	}
}

func (s *Store) InsertImportRecord(ctx context.Context, record *importer.ImportRecord) error {
	if _, err := s.db.Collection(export.CollectionImportHistory).InsertOne(ctx, bson.M(docstore.HistoryRecord(record))); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"insert import record", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e06")
	}
	return nil
}

// List returns a sorted page of collection. _id breaks ties so paging is stable.
func (s *Store) List(ctx context.Context, collection string, opts browse.ListOptions) ([]export.Record, error) {
	projection := bson.M{"_id": 0}
	for _, field := range opts.Exclude {
		projection[field] = 0
	}
	find := options.Find().SetProjection(projection)

	sort := bson.D{}
	if opts.SortField != "" {
		dir := 1
		if opts.Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: opts.SortField, Value: dir})
	}
	find.SetSort(append(sort, bson.E{Key: "_id", Value: 1}))
	if opts.Skip > 0 {
		find.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{}, find)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"list documents", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e07")
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"decode documents", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e08")
	}

	out := make([]export.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toRecord(doc))
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"count documents", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e09")
	}
	return n, nil
}

// Distinct returns the unique string values of field. Non-string values are dropped.
func (s *Store) Distinct(ctx context.Context, collection, field string) ([]string, error) {
	res := s.db.Collection(collection).Distinct(ctx, field, bson.M{})
	err := res.Err()
	var values []any
	if err == nil {
		err = res.Decode(&values)
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeStorage,
			"distinct values", err, "6d0b2f44-81c3-4a57-b0e2-3c9f5a1d7e10")
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

func toRecord(doc bson.M) export.Record {
	rec := make(export.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		rec[k] = plain(v)
	}
	return rec
}

// plain converts driver values into the JSON-like types the rest of the service expects.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case bson.DateTime:
		return t.Time().UTC()
	case bson.ObjectID:
		return t.Hex()
	case bson.Decimal128:
		return t.String()
	case int32:
		return int64(t)
	}
	return v
}
