// Package archivestore retains uploaded export archives after a successful import.
package archivestore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/importer"
	"jan-server/services/archive-api/internal/infrastructure/metrics"
)

// New returns the configured archive store, or nil when retention is disabled.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (importer.ArchiveStore, error) {
	switch cfg.ArchiveStorageBackend {
	case config.ArchiveStorageLocal:
		return NewLocalStore(cfg.LocalStoragePath, log)
	case config.ArchiveStorageS3:
		return NewS3Store(ctx, cfg, log)
	case "", config.ArchiveStorageNone:
		log.Info().Msg("archive retention disabled")
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported archive storage backend %q", cfg.ArchiveStorageBackend)
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(key, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return cleaned, nil
}

func observe(backend, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordArchiveStoreOperation(backend, operation, status, time.Since(start).Seconds())
}
