package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/archive"
	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/infrastructure/archivestore"
	"jan-server/services/archive-api/internal/infrastructure/docstore/backend"
	"jan-server/services/archive-api/internal/infrastructure/logger"
	"jan-server/services/archive-api/internal/infrastructure/observability"
	"jan-server/services/archive-api/internal/interfaces/httpserver"
)

type Application struct {
	httpServer *httpserver.HTTPServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HTTPServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	store, closeStore, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open document store")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := closeStore(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("close document store")
		}
	}()

	archives, err := archivestore.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize archive storage")
	}

	extractor := archive.NewExtractor(cfg.MaxEntryBytes, log)
	importService := importer.NewService(cfg, store, extractor, archives, log)
	browseService := browse.NewService(store, log)

	httpServer := httpserver.New(cfg, log, importService, browseService, store)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
