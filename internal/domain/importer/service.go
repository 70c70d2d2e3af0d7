package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"jan-server/services/archive-api/internal/config"
	"jan-server/services/archive-api/internal/domain/archive"
	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/infrastructure/metrics"
	"jan-server/services/archive-api/internal/infrastructure/observability"
	"jan-server/services/archive-api/internal/utils/importid"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Extractor unpacks an archive into a workspace and lists its JSON payloads.
type Extractor interface {
	Extract(ctx context.Context, archivePath, workspace string) ([]string, error)
}

// Service runs archive imports end to end.
type Service struct {
	cfg       *config.Config
	repo      Repository
	extractor Extractor
	loader    *Loader
	archives  ArchiveStore
	newID     func() string
	now       func() time.Time
	log       zerolog.Logger
}

// NewService wires an import service. archives may be nil to disable retention.
func NewService(cfg *config.Config, repo Repository, extractor Extractor, archives ArchiveStore, log zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		repo:      repo,
		extractor: extractor,
		loader:    NewLoader(repo, cfg.SkipInvalidRecords, log),
		archives:  archives,
		newID:     importid.New,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With().Str("component", "import-service").Logger(),
	}
}

// run tracks the state machine of one import.
type run struct {
	mu     sync.Mutex
	state  State
	record *ImportRecord
	span   trace.Span
	log    zerolog.Logger
}

func (r *run) advance(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()

	observability.AddStateTransition(r.span, string(from), string(to))
	r.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("import state changed")
}

// RunImport extracts archivePath, loads every classified payload and records the run in
// import history. The workspace is removed on every exit path.
func (s *Service) RunImport(ctx context.Context, archivePath, accountLabel string) (*ImportSummary, error) {
	account := strings.TrimSpace(accountLabel)
	if account == "" {
		account = DefaultAccount
	}

	batchID := s.newID()
	started := time.Now()
	ctx, span := observability.StartImportSpan(ctx, batchID, account)
	defer span.End()

	r := &run{
		state: StateReceived,
		span:  span,
		log:   s.log.With().Str("import_id", batchID).Str("account_name", account).Logger(),
		record: &ImportRecord{
			ImportID:    batchID,
			AccountName: account,
			Timestamp:   s.now(),
		},
	}
	workspace := filepath.Join(s.cfg.UploadFolder, "temp_"+batchID)

	err := s.execute(ctx, r, archivePath, workspace)

	if err != nil {
		r.advance(StateFailed)
		observability.RecordError(span, err, "error")
		if s.cfg.RecordFailures {
			s.recordFailure(ctx, r, err)
		}
	}

	r.advance(StateCleanup)
	if rmErr := os.RemoveAll(workspace); rmErr != nil {
		r.log.Warn().Err(rmErr).Str("workspace", workspace).Msg("failed to remove workspace")
	}

	if err != nil {
		metrics.RecordImport(StatusFailed, time.Since(started).Seconds())
		r.log.Error().Err(err).Msg("import failed")
		return nil, err
	}

	r.advance(StateDone)
	metrics.RecordImport(StatusCompleted, time.Since(started).Seconds())
	r.log.Info().
		Int("files_found", r.record.FilesFound).
		Interface("conversations", r.record.Conversations).
		Interface("users", r.record.Users).
		Interface("projects", r.record.Projects).
		Msg("import completed")
	return &ImportSummary{ImportRecord: *r.record}, nil
}

func (s *Service) execute(ctx context.Context, r *run, archivePath, workspace string) error {
	r.advance(StateExtracting)
	paths, err := s.extractor.Extract(ctx, archivePath, workspace)
	if err != nil {
		return err
	}
	r.record.FilesFound = len(paths)

	byKind := make(map[export.Kind][]string, len(export.Kinds))
	for _, path := range paths {
		kind := archive.Classify(path)
		if kind == export.KindUnknown {
			r.log.Debug().Str("file", filepath.Base(path)).Msg("ignoring unclassified payload")
			continue
		}
		byKind[kind] = append(byKind[kind], path)
	}

	if s.cfg.ConcurrentStages {
		err = s.loadConcurrently(ctx, r, byKind)
	} else {
		err = s.loadSequentially(ctx, r, byKind)
	}
	if err != nil {
		return err
	}

	r.advance(StateRecordingHistory)
	r.record.Status = StatusCompleted
	if err := s.repo.InsertImportRecord(ctx, r.record); err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeStorage) {
			return err
		}
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"record import history", err, "3f6a9c1e-7b2d-4e5f-8a0b-1c2d3e4f5a01")
	}
	return nil
}

func (s *Service) loadSequentially(ctx context.Context, r *run, byKind map[export.Kind][]string) error {
	for _, kind := range export.Kinds {
		r.advance(loadingState(kind))
		res, err := s.loadKind(ctx, r.record.ImportID, r.record.AccountName, kind, byKind[kind])
		s.merge(r, kind, res)
		if err != nil {
			return err
		}
	}
	return nil
}

// loadConcurrently runs the three kinds in parallel. Files of one kind still load in order.
func (s *Service) loadConcurrently(ctx context.Context, r *run, byKind map[export.Kind][]string) error {
	r.advance(StateLoadingAll)
	results := make([]LoadResult, len(export.Kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range export.Kinds {
		i, kind := i, kind
		g.Go(func() error {
			res, err := s.loadKind(gctx, r.record.ImportID, r.record.AccountName, kind, byKind[kind])
			results[i] = res
			return err
		})
	}
	err := g.Wait()
	for i, kind := range export.Kinds {
		s.merge(r, kind, results[i])
	}
	return err
}

func (s *Service) loadKind(ctx context.Context, batchID, account string, kind export.Kind, files []string) (LoadResult, error) {
	var total LoadResult
	for _, path := range files {
		fctx, span := observability.StartLoadSpan(ctx, batchID, string(kind), filepath.Base(path))
		res, err := s.loader.LoadFile(fctx, kind, path, batchID, account)
		observability.AddLoadResult(span, res.Loaded, res.Duplicates, len(res.Skipped))
		metrics.RecordLoad(string(kind), res.Loaded, res.Duplicates, len(res.Skipped))
		total.Counts.Add(res.Counts)
		total.Skipped = append(total.Skipped, res.Skipped...)
		if err != nil {
			observability.RecordError(span, err, "error")
			span.End()
			return total, err
		}
		span.End()
	}
	return total, nil
}

func (s *Service) merge(r *run, kind export.Kind, res LoadResult) {
	if counts := r.record.CountsFor(kind); counts != nil {
		counts.Add(res.Counts)
	}
	r.record.RecordErrors = append(r.record.RecordErrors, res.Skipped...)
}

func (s *Service) recordFailure(ctx context.Context, r *run, cause error) {
	r.record.Status = StatusFailed
	r.record.Error = cause.Error()
	if pe := platformerrors.GetPlatformError(cause); pe != nil {
		r.record.Error = pe.Message
	}
	// written even when the run context is already cancelled
	if err := s.repo.InsertImportRecord(context.WithoutCancel(ctx), r.record); err != nil {
		r.log.Error().Err(err).Msg("failed to record failed import")
	}
}

// ImportUpload saves an uploaded archive under the upload folder, imports it and
// optionally retains it in the archive store. The saved upload is always removed.
func (s *Service) ImportUpload(ctx context.Context, req UploadRequest) (*ImportSummary, error) {
	name := sanitizeFilename(req.Filename)
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"only .zip archives are accepted", nil, "3f6a9c1e-7b2d-4e5f-8a0b-1c2d3e4f5a02")
	}
	if req.Size > s.cfg.MaxContentLength {
		return nil, tooLarge(ctx, s.cfg.MaxContentLength)
	}

	if err := os.MkdirAll(s.cfg.UploadFolder, 0o755); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"create upload folder", err, "3f6a9c1e-7b2d-4e5f-8a0b-1c2d3e4f5a03")
	}
	dst, err := os.CreateTemp(s.cfg.UploadFolder, "upload_*_"+name)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"save upload", err, "3f6a9c1e-7b2d-4e5f-8a0b-1c2d3e4f5a04")
	}
	savedPath := dst.Name()
	defer os.Remove(savedPath)

	written, err := io.Copy(dst, io.LimitReader(req.Body, s.cfg.MaxContentLength+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"save upload", err, "3f6a9c1e-7b2d-4e5f-8a0b-1c2d3e4f5a04")
	}
	if written > s.cfg.MaxContentLength {
		return nil, tooLarge(ctx, s.cfg.MaxContentLength)
	}

	summary, err := s.RunImport(ctx, savedPath, req.Account)
	if err != nil {
		return nil, err
	}

	if s.archives != nil {
		key := fmt.Sprintf("archives/%s.zip", summary.ImportID)
		if err := s.archives.Save(ctx, key, savedPath); err != nil {
			s.log.Warn().Err(err).Str("import_id", summary.ImportID).Str("backend", s.archives.Name()).Msg("failed to retain archive")
		} else {
			summary.ArchiveKey = key
		}
	}
	return summary, nil
}

func tooLarge(ctx context.Context, limit int64) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTooLarge,
		fmt.Sprintf("archive exceeds max size of %d bytes", limit), nil, "3f6a9c1e-7b2d-4e5f-8a0b-1c2d3e4f5a05")
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilename.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}
