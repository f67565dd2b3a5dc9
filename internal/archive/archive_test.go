package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/mangatl/mangatl/internal/models"
)

type mapFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls int
}

func (f *mapFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	d, ok := f.data[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

type recordingDownloader struct {
	name  string
	data  []byte
	calls int
	err   error
}

func (d *recordingDownloader) Deliver(filename string, data []byte) error {
	d.calls++
	d.name = filename
	d.data = data
	return d.err
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func results(names ...string) []models.ImageHandle {
	out := make([]models.ImageHandle, 0, len(names))
	for i, n := range names {
		out = append(out, models.ImageHandle{Ref: "http://x/" + string(rune('a'+i)), Name: n})
	}
	return out
}

func TestExportSkipsFailedFetch(t *testing.T) {
	handles := results("one.png", "two.png", "three.png")
	fetcher := &mapFetcher{data: map[string][]byte{
		handles[0].Ref: []byte("1"),
		handles[2].Ref: []byte("3"),
	}}
	dl := &recordingDownloader{}

	err := NewExporter(fetcher, 2).ExportArchive(context.Background(), handles, dl)

	require.NoError(t, err)
	require.Equal(t, 3, fetcher.calls)
	require.Equal(t, 1, dl.calls)
	require.Equal(t, DefaultName, dl.name)
	require.Equal(t, map[string]string{"one.png": "1", "three.png": "3"}, readZip(t, dl.data))
}

func TestBuildReportsSkippedItems(t *testing.T) {
	handles := results("one.png", "two.png")
	fetcher := &mapFetcher{data: map[string][]byte{handles[0].Ref: []byte("1")}}

	bundle, err := NewExporter(fetcher, 0).Build(context.Background(), handles)

	require.NoError(t, err)
	require.Equal(t, []string{"one.png"}, bundle.Entries)
	require.Len(t, bundle.Skipped, 1)
	require.Equal(t, "two.png", bundle.Skipped[0].Name)
	require.ErrorContains(t, bundle.Skipped[0], "not found")
}

func TestExportAllFailuresDeliversNothing(t *testing.T) {
	dl := &recordingDownloader{}

	err := NewExporter(&mapFetcher{}, 1).ExportArchive(context.Background(), results("a.png", "b.png"), dl)

	require.NoError(t, err)
	require.Zero(t, dl.calls)
}

func TestExportDuplicateNamesLastWriteWins(t *testing.T) {
	handles := results("page.png", "other.png", "page.png")
	fetcher := &mapFetcher{data: map[string][]byte{
		handles[0].Ref: []byte("first"),
		handles[1].Ref: []byte("other"),
		handles[2].Ref: []byte("second"),
	}}

	bundle, err := NewExporter(fetcher, 3).Build(context.Background(), handles)

	require.NoError(t, err)
	require.Equal(t, []string{"page.png", "other.png"}, bundle.Entries)
	require.Equal(t, map[string]string{"page.png": "second", "other.png": "other"}, readZip(t, bundle.Data))
}

func TestExportDownloaderFailure(t *testing.T) {
	handles := results("a.png")
	fetcher := &mapFetcher{data: map[string][]byte{handles[0].Ref: []byte("a")}}
	dl := &recordingDownloader{err: errors.New("disk full")}

	err := NewExporter(fetcher, 1).ExportArchive(context.Background(), handles, dl)

	var berr *ArchiveBuildError
	require.True(t, errors.As(err, &berr))
	require.ErrorContains(t, err, "disk full")
}

func TestEntryNameStripsDirectories(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.png", "a.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\manga\p1.jpg`, "p1.jpg"},
		{"", "image_4"},
		{"..", "image_4"},
		{"dir/", "dir"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, entryName(tt.in, 3), tt.in)
	}
}

func TestFileDownloader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	d := &FileDownloader{Dir: dir}

	require.NoError(t, d.Deliver("translated.zip", []byte("zip")))

	require.Equal(t, filepath.Join(dir, "translated.zip"), d.Path)
	got, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	require.Equal(t, []byte("zip"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
