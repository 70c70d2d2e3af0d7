package archivestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const backendLocal = "local"

// LocalStore copies archives under a base directory.
type LocalStore struct {
	basePath string
	log      zerolog.Logger
}

func NewLocalStore(basePath string, log zerolog.Logger) (*LocalStore, error) {
	logger := log.With().Str("component", "local-archive-store").Logger()

	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, fmt.Errorf("local archive storage path is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local archive directory: %w", err)
	}

	logger.Info().Str("path", basePath).Msg("local archive storage initialized")
	return &LocalStore{basePath: basePath, log: logger}, nil
}

func (l *LocalStore) Name() string {
	return backendLocal
}

// Save copies the file at src to key, replacing any previous copy.
func (l *LocalStore) Save(ctx context.Context, key string, src string) (err error) {
	start := time.Now()
	defer func() { observe(backendLocal, "save", start, err) }()

	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(l.basePath, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	out, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	written, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}

	l.log.Debug().Str("key", cleaned).Int64("bytes", written).Msg("archive retained")
	return nil
}

// Health checks that the storage directory is writable.
func (l *LocalStore) Health(ctx context.Context) error {
	testFile := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}
