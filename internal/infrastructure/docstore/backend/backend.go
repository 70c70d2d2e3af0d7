// Package backend opens the document store selected by STORE_BACKEND.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/infrastructure/database"
	"jan-server/services/archive-api/internal/infrastructure/docstore/memory"
	"jan-server/services/archive-api/internal/infrastructure/docstore/mongo"
	"jan-server/services/archive-api/internal/infrastructure/docstore/postgres"
)

// Store is everything the service needs from a document store backend.
type Store interface {
	importer.Repository
	browse.Reader
	Ping(ctx context.Context) error
}

// Closer releases backend resources.
type Closer func(ctx context.Context) error

// Open connects to the configured backend and ensures its indexes.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, Closer, error) {
	store, closer, err := connect(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = closer(context.Background())
		return nil, nil, err
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("document store ready")
	return store, closer, nil
}

func connect(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, Closer, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMongo:
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.StoreBackendPostgres:
		db, err := database.Connect(ctx, database.ConfigFrom(cfg))
		if err != nil {
			return nil, nil, err
		}
		closer := func(context.Context) error { return database.Close(db) }
		return postgres.NewStore(db, log), closer, nil

	case config.StoreBackendMemory:
		log.Warn().Msg("using in-memory document store; imported data is lost on exit")
		return memory.NewStore(), func(context.Context) error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
}
