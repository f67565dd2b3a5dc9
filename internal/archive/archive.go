// Package archive bundles result images into a single zip download.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/mangatl/mangatl/internal/models"
)

// DefaultName is the file name offered for the download.
const DefaultName = "translated.zip"

const defaultConcurrency = 4

// Fetcher resolves a displayable reference to bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Downloader hands a finished archive to the user.
type Downloader interface {
	Deliver(filename string, data []byte) error
}

// FetchItemError records a result image that could not be fetched. The
// export carries on without it.
type FetchItemError struct {
	Ref  string
	Name string
	Err  error
}

func (e *FetchItemError) Error() string {
	return fmt.Sprintf("failed to fetch %s (%s): %v", e.Name, e.Ref, e.Err)
}

func (e *FetchItemError) Unwrap() error { return e.Err }

// ArchiveBuildError means no archive was produced or delivered.
type ArchiveBuildError struct {
	Err error
}

func (e *ArchiveBuildError) Error() string {
	return "failed to build archive: " + e.Err.Error()
}

func (e *ArchiveBuildError) Unwrap() error { return e.Err }

// Bundle is an assembled archive.
type Bundle struct {
	Name    string
	Data    []byte
	Entries []string
	Skipped []*FetchItemError
}

// Empty reports whether nothing could be packed.
func (b *Bundle) Empty() bool {
	return len(b.Entries) == 0
}

// Exporter fetches result images and zips them.
type Exporter struct {
	Fetcher     Fetcher
	Concurrency int
	Name        string
}

func NewExporter(fetcher Fetcher, concurrency int) *Exporter {
	return &Exporter{
		Fetcher:     fetcher,
		Concurrency: concurrency,
		Name:        DefaultName,
	}
}

// ExportArchive builds the archive for handles and delivers it. Items
// that fail to fetch are skipped; an archive with no entries completes
// without a download.
func (e *Exporter) ExportArchive(ctx context.Context, handles []models.ImageHandle, dl Downloader) error {
	_, err := e.Export(ctx, handles, dl)
	return err
}

// Export is ExportArchive that also returns what was packed and skipped.
// The bundle is nil only when assembly failed.
func (e *Exporter) Export(ctx context.Context, handles []models.ImageHandle, dl Downloader) (*Bundle, error) {
	bundle, err := e.Build(ctx, handles)
	if err != nil {
		slog.Error("Error generating archive", "err", err)
		return nil, err
	}

	if bundle.Empty() {
		slog.Warn("Archive has no entries, nothing to download", "requested", len(handles), "skipped", len(bundle.Skipped))
		return bundle, nil
	}

	if err := dl.Deliver(bundle.Name, bundle.Data); err != nil {
		berr := &ArchiveBuildError{Err: fmt.Errorf("download could not be started: %w", err)}
		slog.Error("Error downloading archive", "err", berr)
		return bundle, berr
	}

	slog.Info("Archive delivered", "name", bundle.Name, "entries", len(bundle.Entries), "bytes", len(bundle.Data))
	return bundle, nil
}

// Build fetches every handle and assembles the archive in memory.
// Duplicate display names keep the position of the first occurrence and
// the content of the last.
func (e *Exporter) Build(ctx context.Context, handles []models.ImageHandle) (*Bundle, error) {
	name := e.Name
	if name == "" {
		name = DefaultName
	}
	bundle := &Bundle{Name: name}

	contents := e.fetchAll(ctx, handles)

	var order []string
	latest := make(map[string][]byte)
	for i, h := range handles {
		c := contents[i]
		if c.err != nil {
			ferr := &FetchItemError{Ref: h.Ref, Name: h.Name, Err: c.err}
			slog.Error("Error fetching image for archive", "ref", h.Ref, "name", h.Name, "err", c.err)
			bundle.Skipped = append(bundle.Skipped, ferr)
			continue
		}
		entry := entryName(h.Name, i)
		if _, seen := latest[entry]; !seen {
			order = append(order, entry)
		} else {
			slog.Debug("Duplicate archive entry overwritten", "entry", entry)
		}
		latest[entry] = c.data
	}

	if len(order) == 0 {
		return bundle, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for _, entry := range order {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, &ArchiveBuildError{Err: fmt.Errorf("entry %s: %w", entry, err)}
		}
		if _, err := w.Write(latest[entry]); err != nil {
			return nil, &ArchiveBuildError{Err: fmt.Errorf("entry %s: %w", entry, err)}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &ArchiveBuildError{Err: err}
	}

	bundle.Data = buf.Bytes()
	bundle.Entries = order
	return bundle, nil
}

type fetched struct {
	data []byte
	err  error
}

func (e *Exporter) fetchAll(ctx context.Context, handles []models.ImageHandle) []fetched {
	out := make([]fetched, len(handles))

	limit := e.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, h := range handles {
		g.Go(func() error {
			data, err := e.Fetcher.Fetch(ctx, h.Ref)
			out[i] = fetched{data: data, err: err}
			// per-item failures never cancel the group
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// entryName strips any directory components so entries cannot escape the
// extraction directory.
func entryName(name string, i int) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || strings.TrimSpace(base) == "" {
		return fmt.Sprintf("image_%d", i+1)
	}
	return base
}
