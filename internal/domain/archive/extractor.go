package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

const zipMIME = "application/zip"

// Extractor unpacks export archives into a scratch workspace.
type Extractor struct {
	maxEntryBytes int64
	log           zerolog.Logger
}

// NewExtractor returns an Extractor. maxEntryBytes <= 0 disables the per-entry limit.
func NewExtractor(maxEntryBytes int64, log zerolog.Logger) *Extractor {
	return &Extractor{
		maxEntryBytes: maxEntryBytes,
		log:           log.With().Str("component", "archive-extractor").Logger(),
	}
}

// Extract unpacks archivePath into workspace and returns the sorted paths of every .json file inside it.
func (e *Extractor) Extract(ctx context.Context, archivePath, workspace string) ([]string, error) {
	if err := e.checkContainer(ctx, archivePath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"create workspace", err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c01")
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		if reader != nil {
			reader.Close()
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
			"archive is not a valid zip container", err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c02")
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
				"archive extraction interrupted", err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c0a")
		}
		if err := e.extractEntry(ctx, file, workspace); err != nil {
			return nil, err
		}
	}

	paths, err := FindJSON(workspace)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
			"walk workspace", err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c03")
	}

	e.log.Debug().
		Str("archive", filepath.Base(archivePath)).
		Int("entries", len(reader.File)).
		Int("json_files", len(paths)).
		Msg("archive extracted")
	return paths, nil
}

func (e *Extractor) checkContainer(ctx context.Context, archivePath string) error {
	mtype, err := mimetype.DetectFile(archivePath)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
			"read archive", err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c04")
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is(zipMIME) {
			return nil
		}
	}
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
		fmt.Sprintf("unsupported archive type %s", mtype.String()), nil, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c05")
}

func (e *Extractor) extractEntry(ctx context.Context, file *zip.File, workspace string) error {
	target, err := safeJoin(workspace, file.Name)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
			"archive entry escapes workspace", err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c06")
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return storageErr(ctx, err)
		}
		return nil
	}
	if e.maxEntryBytes > 0 && file.UncompressedSize64 > uint64(e.maxEntryBytes) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
			fmt.Sprintf("archive entry %s exceeds %d bytes", file.Name, e.maxEntryBytes), nil, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c07")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return storageErr(ctx, err)
	}

	src, err := file.Open()
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
			fmt.Sprintf("open archive entry %s", file.Name), err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c08")
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return storageErr(ctx, err)
	}
	defer dst.Close()

	var body io.Reader = src
	if e.maxEntryBytes > 0 {
		// the header size can lie; cap the actual stream as well
		body = io.LimitReader(src, e.maxEntryBytes+1)
	}
	written, err := io.Copy(dst, body)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
			fmt.Sprintf("decompress archive entry %s", file.Name), err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c09")
	}
	if e.maxEntryBytes > 0 && written > e.maxEntryBytes {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExtraction,
			fmt.Sprintf("archive entry %s exceeds %d bytes", file.Name, e.maxEntryBytes), nil, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c07")
	}
	return nil
}

func storageErr(ctx context.Context, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeStorage,
		"write workspace", err, "5b0f6c2e-1a7d-4b8e-9d3c-2f4a6e8b1c10")
}

func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("absolute path %q", name)
	}
	target := filepath.Join(root, name)
	cleanRoot := filepath.Clean(root)
	if target != cleanRoot && !strings.HasPrefix(target, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q outside %q", name, root)
	}
	return target, nil
}

// FindJSON walks root recursively and returns the sorted paths of files ending in .json.
func FindJSON(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Classify routes a payload file by its lower-cased base name. First match wins.
func Classify(name string) export.Kind {
	base := strings.ToLower(filepath.Base(name))
	switch {
	case strings.Contains(base, "conversation"):
		return export.KindConversation
	case strings.Contains(base, "user"):
		return export.KindUser
	case strings.Contains(base, "project"):
		return export.KindProject
	}
	return export.KindUnknown
}
