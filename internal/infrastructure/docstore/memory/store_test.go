package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/domain/importer"
)

func TestStore_UpsertSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	inserted, err := store.Upsert(ctx, export.CollectionUsers, "u1",
		export.Record{"id": "u1", "email": "a@x.com", "_id": "internal", "_import_ids": []string{"forged"}}, "imp_1")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Upsert(ctx, export.CollectionUsers, "u1", export.Record{"name": "Ada"}, "imp_2")
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = store.Upsert(ctx, export.CollectionUsers, "u1", export.Record{"email": "b@x.com"}, "imp_1")
	require.NoError(t, err)

	doc, err := store.FindOneByKey(ctx, export.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc["uuid"])
	assert.Equal(t, "b@x.com", doc["email"])
	assert.Equal(t, "Ada", doc["name"])
	assert.Equal(t, []string{"imp_1", "imp_2"}, doc["_import_ids"])
	assert.NotContains(t, doc, "_id")

	missing, err := store.FindOneByKey(ctx, export.CollectionUsers, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ConcurrentUpsertsReportOneInsert(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserts := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.Upsert(context.Background(), export.CollectionConversations, "c1",
				export.Record{"name": fmt.Sprintf("run %d", i)}, fmt.Sprintf("imp_%d", i%5))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, inserts)
	n, _ := store.Count(context.Background(), export.CollectionConversations)
	assert.Equal(t, int64(1), n)
	doc, _ := store.FindOneByKey(context.Background(), export.CollectionConversations, "c1")
	assert.Len(t, doc["_import_ids"], 5)
}

func TestStore_ListSortPageExclude(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for i, created := range []string{"2024-01-02", "2024-03-01", "", "2024-02-15"} {
		rec := export.Record{"chat_messages": []any{}, "name": fmt.Sprintf("c%d", i)}
		if created != "" {
			rec["created_at"] = created
		}
		_, err := store.Upsert(ctx, export.CollectionConversations, fmt.Sprintf("c%d", i), rec, "imp")
		require.NoError(t, err)
	}

	items, err := store.List(ctx, export.CollectionConversations, browse.ListOptions{
		SortField:  "created_at",
		Descending: true,
		Skip:       1,
		Limit:      2,
		Exclude:    []string{"chat_messages"},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c3", items[0]["uuid"])
	assert.Equal(t, "c0", items[1]["uuid"])
	assert.NotContains(t, items[0], "chat_messages")

	// copies must not leak into the store
	items[0]["name"] = "mutated"
	doc, _ := store.FindOneByKey(ctx, export.CollectionConversations, "c3")
	assert.Equal(t, "c3", doc["name"])

	items, err = store.List(ctx, export.CollectionConversations, browse.ListOptions{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_ImportHistoryAndDistinct(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertImportRecord(ctx, &importer.ImportRecord{ImportID: "imp_a", Timestamp: older, Status: importer.StatusCompleted}))
	require.NoError(t, store.InsertImportRecord(ctx, &importer.ImportRecord{
		ImportID:  "imp_b",
		Timestamp: older.Add(time.Hour),
		Status:    importer.StatusFailed,
		Error:     "boom",
		Users:     importer.Counts{Loaded: 2},
	}))

	items, err := store.List(ctx, export.CollectionImportHistory, browse.ListOptions{SortField: "timestamp", Descending: true})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "imp_b", items[0]["import_id"])
	assert.Equal(t, "boom", items[0]["error"])
	assert.Equal(t, map[string]any{"loaded": 2, "duplicates": 0}, items[0]["users"])

	for _, acct := range []string{"alice", "bob", "alice"} {
		_, err := store.Upsert(ctx, export.CollectionConversations, acct+"-conv", export.Record{"_account_name": acct}, "imp")
		require.NoError(t, err)
	}
	accounts, err := store.Distinct(ctx, export.CollectionConversations, "_account_name")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, accounts)
}
