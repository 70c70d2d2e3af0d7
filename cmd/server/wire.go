//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/archive"
	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/infrastructure/archivestore"
	"jan-server/services/archive-api/internal/infrastructure/docstore/backend"
	"jan-server/services/archive-api/internal/infrastructure/logger"
	"jan-server/services/archive-api/internal/interfaces/httpserver"
)

var storeSet = wire.NewSet(
	newStore,
	wire.Bind(new(importer.Repository), new(backend.Store)),
	wire.Bind(new(browse.Reader), new(backend.Store)),
	wire.Bind(new(httpserver.Pinger), new(backend.Store)),
)

var importSet = wire.NewSet(
	newExtractor,
	wire.Bind(new(importer.Extractor), new(*archive.Extractor)),
	archivestore.New,
	importer.NewService,
	browse.NewService,
)

// BuildApplication assembles the archive service with Wire.
func BuildApplication(ctx context.Context) (*Application, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		storeSet,
		importSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil, nil
}

func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (backend.Store, func(), error) {
	store, closer, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = closer(context.Background()) }, nil
}

func newExtractor(cfg *config.Config, log zerolog.Logger) *archive.Extractor {
	return archive.NewExtractor(cfg.MaxEntryBytes, log)
}
