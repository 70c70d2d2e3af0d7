package backend

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/export"
)

func TestOpen_Memory(t *testing.T) {
	store, closer, err := Open(context.Background(), &config.Config{StoreBackend: config.StoreBackendMemory}, zerolog.Nop())
	require.NoError(t, err)
	defer closer(context.Background())

	require.NoError(t, store.Ping(context.Background()))
	inserted, err := store.Upsert(context.Background(), export.CollectionUsers, "u1", export.Record{"id": "u1"}, "imp_1")
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestOpen_Unsupported(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{StoreBackend: "cassandra"}, zerolog.Nop())
	assert.Error(t, err)
}
