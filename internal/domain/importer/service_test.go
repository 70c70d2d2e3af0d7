package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/archive"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

type fakeRepository struct {
	mu         sync.Mutex
	docs       map[string]map[string]export.Record
	history    []ImportRecord
	UpsertFunc func(collection, key string) error
	InsertFunc func(record *ImportRecord) error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{docs: make(map[string]map[string]export.Record)}
}

func (f *fakeRepository) FindOneByKey(_ context.Context, collection, key string) (export.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[collection][key], nil
}

func (f *fakeRepository) Upsert(_ context.Context, collection, key string, doc export.Record, batchID string) (bool, error) {
	if f.UpsertFunc != nil {
		if err := f.UpsertFunc(collection, key); err != nil {
			return false, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	coll, ok := f.docs[collection]
	if !ok {
		coll = make(map[string]export.Record)
		f.docs[collection] = coll
	}
	existing, found := coll[key]
	if !found {
		existing = export.Record{}
	}
	for k, v := range doc {
		if k == "_id" || k == export.FieldImportIDs {
			continue
		}
		existing[k] = v
	}
	existing[export.FieldUUID] = key
	ids, _ := existing[export.FieldImportIDs].([]string)
	if !slices.Contains(ids, batchID) {
		ids = append(ids, batchID)
	}
	existing[export.FieldImportIDs] = ids
	coll[key] = existing
	return !found, nil
}

func (f *fakeRepository) InsertImportRecord(_ context.Context, record *ImportRecord) error {
	if f.InsertFunc != nil {
		if err := f.InsertFunc(record); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *record)
	return nil
}

func (f *fakeRepository) EnsureIndexes(context.Context) error { return nil }

func (f *fakeRepository) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[collection])
}

type fakeArchiveStore struct {
	saved map[string][]byte
}

func (f *fakeArchiveStore) Name() string { return "fake" }

func (f *fakeArchiveStore) Save(_ context.Context, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.saved[key] = data
	return nil
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, os.WriteFile(path, zipBytes(t, entries), 0o644))
	return path
}

func newTestService(t *testing.T, repo Repository, mutate func(*config.Config)) (*Service, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		UploadFolder:     t.TempDir(),
		MaxContentLength: 10 << 20,
	}
	if mutate != nil {
		mutate(cfg)
	}
	svc := NewService(cfg, repo, archive.NewExtractor(0, zerolog.Nop()), nil, zerolog.Nop())
	return svc, cfg
}

func sequentialIDs(ids ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[i%len(ids)]
		i++
		return id
	}
}

var scenarioArchive = map[string]string{
	"conversations.json": `[{"uuid":"c1","name":"Test","chat_messages":[]}]`,
	"projects.json":      `[{"uuid":"p1","name":"P"}]`,
	"users.json":         `[{"uuid":"u1","email":"e@x.com"}]`,
}

func TestRunImport_ScenarioAndIdempotentReimport(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		name := "sequential"
		if concurrent {
			name = "concurrent"
		}
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepository()
			svc, _ := newTestService(t, repo, func(c *config.Config) { c.ConcurrentStages = concurrent })
			archivePath := writeArchive(t, scenarioArchive)

			first, err := svc.RunImport(context.Background(), archivePath, "alice")
			require.NoError(t, err)
			assert.Equal(t, 3, first.FilesFound)
			assert.Equal(t, Counts{Loaded: 1}, first.Conversations)
			assert.Equal(t, Counts{Loaded: 1}, first.Users)
			assert.Equal(t, Counts{Loaded: 1}, first.Projects)
			assert.Equal(t, StatusCompleted, first.Status)
			assert.Equal(t, "alice", first.AccountName)

			second, err := svc.RunImport(context.Background(), archivePath, "alice")
			require.NoError(t, err)
			assert.Equal(t, Counts{Duplicates: 1}, second.Conversations)
			assert.Equal(t, Counts{Duplicates: 1}, second.Users)
			assert.Equal(t, Counts{Duplicates: 1}, second.Projects)
			assert.NotEqual(t, first.ImportID, second.ImportID)

			for _, coll := range []string{export.CollectionConversations, export.CollectionUsers, export.CollectionProjects} {
				assert.Equal(t, 1, repo.count(coll), coll)
			}
			require.Len(t, repo.history, 2)
			assert.Equal(t, first.ImportID, repo.history[0].ImportID)
		})
	}
}

func TestRunImport_ProvenanceAccumulates(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(t, repo, nil)
	svc.newID = sequentialIDs("imp_b1", "imp_b2", "imp_b1")
	archivePath := writeArchive(t, scenarioArchive)

	for i := 0; i < 3; i++ {
		_, err := svc.RunImport(context.Background(), archivePath, "")
		require.NoError(t, err)
	}

	doc, err := repo.FindOneByKey(context.Background(), export.CollectionConversations, "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"imp_b1", "imp_b2"}, doc[export.FieldImportIDs])
	assert.Equal(t, "imp_b1", doc[export.FieldImportID])
	assert.Equal(t, DefaultAccount, doc[export.FieldAccountName])
	assert.NotNil(t, doc[export.FieldImportedAt])
}

func TestRunImport_SumsCountsAcrossFiles(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(t, repo, nil)
	archivePath := writeArchive(t, map[string]string{
		"conversations-2023.json": `[{"uuid":"c1"},{"uuid":"c2"}]`,
		"more/conversations.json": `[{"uuid":"c2"},{"uuid":"c3"},{"uuid":"c3"}]`,
		"export-users-final.json": `[{"id":"u1"}]`,
		"readme.txt":              "ignored",
		"metadata.json":           `{"version":1}`,
	})

	summary, err := svc.RunImport(context.Background(), archivePath, "bob")
	require.NoError(t, err)

	assert.Equal(t, 4, summary.FilesFound)
	assert.Equal(t, Counts{Loaded: 3, Duplicates: 2}, summary.Conversations)
	assert.Equal(t, 5, summary.Conversations.Total())
	assert.Equal(t, Counts{Loaded: 1}, summary.Users)
	assert.Equal(t, Counts{}, summary.Projects)

	user, err := repo.FindOneByKey(context.Background(), export.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user[export.FieldUUID])
}

func TestRunImport_CleanupOnSuccessAndFailure(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, cfg := newTestService(t, newFakeRepository(), nil)
		svc.newID = sequentialIDs("imp_ok")

		_, err := svc.RunImport(context.Background(), writeArchive(t, scenarioArchive), "a")
		require.NoError(t, err)
		assert.NoDirExists(t, filepath.Join(cfg.UploadFolder, "temp_imp_ok"))
	})

	t.Run("failure mid-load", func(t *testing.T) {
		repo := newFakeRepository()
		repo.UpsertFunc = func(collection, _ string) error {
			if collection == export.CollectionProjects {
				return errors.New("connection reset")
			}
			return nil
		}
		svc, cfg := newTestService(t, repo, nil)
		svc.newID = sequentialIDs("imp_fail")

		_, err := svc.RunImport(context.Background(), writeArchive(t, scenarioArchive), "a")
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeStorage))
		assert.NoDirExists(t, filepath.Join(cfg.UploadFolder, "temp_imp_fail"))

		// earlier stages stay persisted, no history entry
		assert.Equal(t, 1, repo.count(export.CollectionConversations))
		assert.Empty(t, repo.history)
	})

	t.Run("not a zip", func(t *testing.T) {
		repo := newFakeRepository()
		svc, cfg := newTestService(t, repo, nil)
		svc.newID = sequentialIDs("imp_bad")
		path := filepath.Join(t.TempDir(), "export.zip")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

		_, err := svc.RunImport(context.Background(), path, "a")
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExtraction))
		assert.NoDirExists(t, filepath.Join(cfg.UploadFolder, "temp_imp_bad"))
		assert.Empty(t, repo.history)
	})
}

func TestRunImport_RecordFailures(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(t, repo, func(c *config.Config) { c.RecordFailures = true })
	archivePath := writeArchive(t, map[string]string{
		"conversations.json": `[{"uuid":"c1"},{"name":"no key"}]`,
	})

	_, err := svc.RunImport(context.Background(), archivePath, "a")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeLoad))

	require.Len(t, repo.history, 1)
	assert.Equal(t, StatusFailed, repo.history[0].Status)
	assert.Contains(t, repo.history[0].Error, "no uuid")
	assert.Equal(t, Counts{Loaded: 1}, repo.history[0].Conversations)
}

func TestRunImport_HistoryFailureIsStorageError(t *testing.T) {
	repo := newFakeRepository()
	repo.InsertFunc = func(*ImportRecord) error { return errors.New("disk full") }
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.RunImport(context.Background(), writeArchive(t, scenarioArchive), "a")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeStorage))
}

func TestRunImport_SkipInvalidRecords(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := newTestService(t, repo, func(c *config.Config) { c.SkipInvalidRecords = true })
	archivePath := writeArchive(t, map[string]string{
		"conversations.json": `[{"uuid":"c1"},{"name":"no key"},{"uuid":"c2"}]`,
		"users.json":         `[{"email":"nobody@x.com"}, 42]`,
	})

	summary, err := svc.RunImport(context.Background(), archivePath, "a")
	require.NoError(t, err)
	assert.Equal(t, Counts{Loaded: 2}, summary.Conversations)
	assert.Equal(t, Counts{}, summary.Users)
	require.Len(t, summary.RecordErrors, 3)
	assert.Equal(t, RecordError{File: "conversations.json", Index: 1, Reason: "record has no uuid"}, summary.RecordErrors[0])
	assert.Equal(t, 1, summary.RecordErrors[2].Index)
}

func TestImportUpload(t *testing.T) {
	t.Run("imports and retains archive", func(t *testing.T) {
		repo := newFakeRepository()
		svc, cfg := newTestService(t, repo, nil)
		store := &fakeArchiveStore{saved: map[string][]byte{}}
		svc.archives = store
		svc.newID = sequentialIDs("imp_up")
		data := zipBytes(t, scenarioArchive)

		summary, err := svc.ImportUpload(context.Background(), UploadRequest{
			Filename: "../../claude export.zip",
			Account:  "carol",
			Size:     int64(len(data)),
			Body:     bytes.NewReader(data),
		})
		require.NoError(t, err)
		assert.Equal(t, "archives/imp_up.zip", summary.ArchiveKey)
		assert.Equal(t, data, store.saved["archives/imp_up.zip"])

		entries, err := os.ReadDir(cfg.UploadFolder)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejects non zip name", func(t *testing.T) {
		svc, _ := newTestService(t, newFakeRepository(), nil)
		_, err := svc.ImportUpload(context.Background(), UploadRequest{Filename: "export.tar", Body: strings.NewReader("x")})
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		svc, cfg := newTestService(t, newFakeRepository(), func(c *config.Config) { c.MaxContentLength = 16 })
		_, err := svc.ImportUpload(context.Background(), UploadRequest{
			Filename: "export.zip",
			Body:     bytes.NewReader(zipBytes(t, scenarioArchive)),
		})
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTooLarge))

		entries, err := os.ReadDir(cfg.UploadFolder)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "claude_export.zip", sanitizeFilename("../../claude export.zip"))
	assert.Equal(t, "data.zip", sanitizeFilename(`C:\Users\me\data.zip`))
	assert.Equal(t, "upload", sanitizeFilename(".."))
}
