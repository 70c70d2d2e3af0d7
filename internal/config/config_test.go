package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "archive-api", cfg.ServiceName)
	assert.Equal(t, StoreBackendMongo, cfg.StoreBackend)
	assert.Equal(t, "anthropic_data", cfg.MongoDatabase)
	assert.Equal(t, int64(500*1024*1024), cfg.MaxContentLength)
	assert.Equal(t, ArchiveStorageNone, cfg.ArchiveStorageBackend)
	assert.False(t, cfg.SkipInvalidRecords)
	assert.False(t, cfg.RecordFailures)
	assert.Equal(t, ":8095", cfg.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", " Memory ")
	t.Setenv("IMPORT_SKIP_INVALID_RECORDS", "true")
	t.Setenv("IMPORT_CONCURRENT_STAGES", "true")
	t.Setenv("UPLOAD_FOLDER", "/tmp/up")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.True(t, cfg.SkipInvalidRecords)
	assert.True(t, cfg.ConcurrentStages)
	assert.Equal(t, "/tmp/up", cfg.UploadFolder)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.StoreBackend = "sqlite" },
			wantErr: "unsupported STORE_BACKEND",
		},
		{
			name:    "mongo without uri",
			mutate:  func(c *Config) { c.StoreBackend = StoreBackendMongo; c.MongoURI = "" },
			wantErr: "MONGO_URI is required",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StoreBackend = StoreBackendPostgres; c.DatabaseURL = " " },
			wantErr: "ARCHIVE_DATABASE_URL is required",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.ArchiveStorageBackend = ArchiveStorageS3 },
			wantErr: "ARCHIVE_S3_BUCKET is required",
		},
		{
			name:    "unknown archive storage",
			mutate:  func(c *Config) { c.ArchiveStorageBackend = "ftp" },
			wantErr: "unsupported ARCHIVE_STORAGE_BACKEND",
		},
		{
			name:   "memory store",
			mutate: func(c *Config) { c.StoreBackend = StoreBackendMemory },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				StoreBackend:          StoreBackendMongo,
				MongoURI:              "mongodb://localhost:27017",
				MongoDatabase:         "anthropic_data",
				DatabaseURL:           "postgres://localhost/archive",
				ArchiveStorageBackend: ArchiveStorageNone,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
