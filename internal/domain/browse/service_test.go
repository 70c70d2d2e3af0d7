package browse_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/archive-api/internal/domain/browse"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/infrastructure/docstore/memory"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

func seed(t *testing.T, store *memory.Store, collection string, raw string) {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var rec export.Record
	require.NoError(t, dec.Decode(&rec))
	key, ok := export.NaturalKey(export.KindUser, rec)
	require.True(t, ok)
	_, err := store.Upsert(context.Background(), collection, key, rec, "imp_seed")
	require.NoError(t, err)
}

const conversationDoc = `{
	"uuid": "c1",
	"name": "Design review",
	"_account_name": "alice",
	"created_at": "2024-05-01T10:00:00Z",
	"chat_messages": [
		{"uuid": "m0", "sender": "human", "text": "see attached",
		 "attachments": [
			{"file_name": "notes", "file_type": "txt", "file_size": 11, "extracted_content": "hello world"},
			{"file_name": "scan.pdf", "file_type": "pdf"}
		 ]},
		{"uuid": "m1", "sender": "assistant", "text": "done",
		 "content": [
			{"type": "text", "text": "Here you go", "citations": [{"url": "https://x"}]},
			{"type": "thinking", "thinking": "considering"},
			{"type": "tool_result", "data": "raw"}
		 ]},
		{"uuid": "m2", "role": "response", "message": [{"type": "pre", "text": "code"}]}
	]
}`

func newService(t *testing.T) (*browse.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	seed(t, store, export.CollectionConversations, conversationDoc)
	return browse.NewService(store, zerolog.Nop()), store
}

func TestConversation_NotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Conversation(context.Background(), "missing")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	rec, err := svc.Conversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Design review", rec["name"])
}

func TestExportConversation(t *testing.T) {
	svc, _ := newService(t)

	file, err := svc.ExportConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "conversation_c1.json", file.Filename)
	assert.Equal(t, "application/json", file.ContentType)
	assert.Contains(t, string(file.Body), "\n  \"name\": \"Design review\"")
}

func TestExportMessages(t *testing.T) {
	svc, _ := newService(t)

	file, err := svc.ExportMessages(context.Background(), "c1", []int{1, 7, -1, 0}, "json")
	require.NoError(t, err)
	assert.Equal(t, "messages_c1.json", file.Filename)

	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(file.Body, &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0]["uuid"])
	assert.Equal(t, "m0", msgs[1]["uuid"])
	assert.Equal(t, "c1", msgs[0]["conversation_uuid"])
	assert.Equal(t, "Design review", msgs[0]["conversation_name"])

	file, err = svc.ExportMessages(context.Background(), "c1", []int{0, 1}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "messages_c1.csv", file.Filename)
	rows, err := csv.NewReader(strings.NewReader(string(file.Body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Contains(t, rows[0], "conversation_uuid")
	assert.Contains(t, rows[0], "attachments")

	_, err = svc.ExportMessages(context.Background(), "c1", []int{0}, "xml")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestAttachment(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	view, err := svc.Attachment(ctx, "c1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "notes", view.Filename)
	assert.Equal(t, "text/plain; charset=utf-8", view.ContentType)
	assert.Equal(t, int64(11), view.Size)
	assert.Equal(t, "hello world", view.Data)
	assert.Equal(t, "/v1/conversations/c1/messages/0/attachments/0/download", view.DownloadURL)

	file, err := svc.AttachmentFile(ctx, "c1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", file.Filename)
	assert.Equal(t, []byte("hello world"), file.Body)

	file, err = svc.AttachmentFile(ctx, "c1", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", file.Filename)
	assert.Equal(t, "application/octet-stream", file.ContentType)
	assert.Empty(t, file.Body)

	_, err = svc.Attachment(ctx, "c1", 0, 5)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	_, err = svc.Attachment(ctx, "c1", 9, 0)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestArtifact(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		mi, ci   int
		filename string
		data     string
		typ      string
	}{
		{1, 0, "assistant_response_0.txt", "Here you go", "text"},
		{1, 1, "assistant_thinking_1.txt", "considering", "thinking"},
		{1, 2, "assistant_artifact_2.txt", "raw", "tool_result"},
		{2, 0, "assistant_artifact_0.txt", "code", "pre"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.mi, tt.ci), func(t *testing.T) {
			view, err := svc.Artifact(ctx, "c1", tt.mi, tt.ci)
			require.NoError(t, err)
			assert.Equal(t, tt.filename, view.Filename)
			assert.Equal(t, tt.data, view.Data)
			assert.Equal(t, tt.typ, view.ArtifactType)
			assert.Equal(t, len(tt.data), view.Size)
			assert.NotNil(t, view.Summaries)
		})
	}

	_, err := svc.Artifact(ctx, "c1", 0, 0)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	_, err = svc.Artifact(ctx, "c1", 1, 3)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestProjectAndRecent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seed(t, store, export.CollectionProjects, `{"uuid":"p1","name":"Alpha","created_at":"2024-01-01","docs":[{"filename":"a"}],"prompt_template":"Be terse"}`)
	seed(t, store, export.CollectionProjects, `{"uuid":"p2","name":"Beta","created_at":"2024-02-01"}`)

	project, err := svc.Project(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, project["docs_count"])
	assert.Equal(t, 1, project["templates_count"])

	_, err = svc.Project(ctx, "p9")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	page, err := svc.Recent(ctx, export.CollectionProjects, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, browse.MinPerPage, page.Pagination.PerPage)
	assert.Equal(t, int64(2), page.Pagination.TotalCount)
	assert.Equal(t, int64(1), page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "p2", page.Items[0]["uuid"])
	assert.Equal(t, 0, page.Items[0]["docs_count"])

	page, err = svc.Recent(ctx, export.CollectionConversations, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, browse.MaxPerPage, page.Pagination.PerPage)
	require.Len(t, page.Items, 1)
	assert.NotContains(t, page.Items[0], "chat_messages")

	page, err = svc.Recent(ctx, export.CollectionUsers, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.True(t, page.Pagination.HasPrev)

	_, err = svc.Recent(ctx, "secrets", 1, 10)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestStatsAndAccounts(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	seed(t, store, export.CollectionConversations, `{"uuid":"c2","_account_name":"bob","created_at":"2023-11-02T08:00:00Z","updated_at":"2024-06-30T12:00:00Z","messages":[{"sender":"human"},{"role":"prompt"}]}`)
	seed(t, store, export.CollectionUsers, `{"id":"u1"}`)

	accounts, err := svc.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, accounts)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalConversations)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Equal(t, int64(0), stats.TotalImports)
	assert.Equal(t, map[string]int{"human": 3, "assistant": 2}, stats.MessagesBySender)
	assert.Equal(t, browse.DateRange{Earliest: "2023-11-02T08:00:00Z", Latest: "2024-06-30T12:00:00Z"}, stats.DateRange)
}

func TestStats_EmptyDateRange(t *testing.T) {
	svc := browse.NewService(memory.NewStore(), zerolog.Nop())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.DateRange)

	out, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"date_range":{}`)
}
