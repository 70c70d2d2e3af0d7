package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/archive-api/internal/config"
)

func TestAdminDSN(t *testing.T) {
	tests := []struct {
		name   string
		dsn    string
		admin  string
		dbName string
		ok     bool
	}{
		{"url", "postgres://u:p@db:5432/archive_api?sslmode=disable", "postgres://u:p@db:5432/postgres?sslmode=disable", "archive_api", true},
		{"maintenance db", "postgres://u:p@db:5432/postgres", "", "", false},
		{"no db", "postgres://u:p@db:5432", "", "", false},
		{"keyword form", "host=db user=u dbname=archive_api", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin, dbName, ok := adminDSN(tt.dsn)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.admin, admin)
			assert.Equal(t, tt.dbName, dbName)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"archive"`, quoteIdentifier("archive"))
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:    "postgres://u:p@db:5432/archive_api",
		DBMaxIdleConns: 4,
		DBMaxOpenConns: 16,
		DBConnLifetime: time.Hour,
		LogLevel:       "info",
	}

	got := ConfigFrom(cfg)
	assert.Equal(t, Config{
		DSN:             "postgres://u:p@db:5432/archive_api",
		MaxIdleConns:    4,
		MaxOpenConns:    16,
		ConnMaxLifetime: time.Hour,
		LogLevel:        gormlogger.Warn,
	}, got)

	cfg.LogLevel = "DEBUG"
	assert.Equal(t, gormlogger.Info, ConfigFrom(cfg).LogLevel)
}

func TestConnect_EmptyDSN(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.EqualError(t, err, "database DSN is empty")
}
