package mongo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"jan-server/services/archive-api/internal/domain/export"
)

func TestUpsertUpdate(t *testing.T) {
	doc := export.Record{
		"_id":         "forged",
		"_import_ids": []any{"imp_forged"},
		"uuid":        "ignored",
		"name":        "Chat",
		"_import_id":  "imp_a",
		"count":       json.Number("3"),
	}

	update := upsertUpdate("c1", doc, "imp_a")

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "c1", set[export.FieldUUID])
	assert.Equal(t, "Chat", set["name"])
	assert.Equal(t, json.Number("3"), set["count"])
	assert.NotContains(t, set, "_id")
	assert.NotContains(t, set, export.FieldImportIDs)
	assert.Equal(t, bson.M{export.FieldImportIDs: "imp_a"}, update["$addToSet"])
}

func TestPlain(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	oid := bson.NewObjectID()

	got := plain(bson.D{
		{Key: "when", Value: bson.NewDateTimeFromTime(at)},
		{Key: "ref", Value: oid},
		{Key: "n", Value: int32(7)},
		{Key: "messages", Value: bson.A{
			bson.D{{Key: "sender", Value: "human"}},
			bson.M{"sender": "assistant", "tags": bson.A{"x"}},
		}},
	})

	want := map[string]any{
		"when": at,
		"ref":  oid.Hex(),
		"n":    int64(7),
		"messages": []any{
			map[string]any{"sender": "human"},
			map[string]any{"sender": "assistant", "tags": []any{"x"}},
		},
	}
	assert.Equal(t, want, got)
}

func TestToRecord_DropsID(t *testing.T) {
	rec := toRecord(bson.M{"_id": bson.NewObjectID(), "uuid": "c1", "chat_messages": bson.A{}})

	assert.Equal(t, export.Record{"uuid": "c1", "chat_messages": []any{}}, rec)

	conv, err := export.NormalizeConversation(rec)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.MessageCount())
}
