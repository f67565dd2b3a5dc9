package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/mangatl/mangatl/internal/archive"
	"github.com/mangatl/mangatl/internal/blobs"
	"github.com/mangatl/mangatl/internal/images"
	"github.com/mangatl/mangatl/internal/models"
	"github.com/mangatl/mangatl/internal/session"
	"github.com/mangatl/mangatl/internal/storage"
	"github.com/mangatl/mangatl/internal/theme"
	"github.com/mangatl/mangatl/internal/upload"
)

func jpeg(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return b
}

type fixture struct {
	handler *Handler
	mux     *http.ServeMux
	blobs   *blobs.Registry
	session *session.Session
}

// newFixture wires a handler against a fake translation backend that
// publishes its results on the same server.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := http.NewServeMux()
	backend.HandleFunc("/translate-images/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"0":{"imageUrl":"/out/a.png","name":"a.jpg"},"1":{"imageUrl":"/out/missing.png","name":"b.jpg"}}`))
	})
	backend.HandleFunc("/out/a.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("translated-a"))
	})
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	reg := blobs.NewRegistry()
	sess := session.New(storage.New(reg), upload.NewClient(srv.URL+"/translate-images/", 5*time.Second), session.Options{})
	themes := theme.NewStore(filepath.Join(t.TempDir(), "theme.yaml"))
	themes.PrefersDark = func() bool { return false }
	themes.Load()

	h := New(Options{
		Session:       sess,
		Blobs:         reg,
		Exporter:      archive.NewExporter(images.NewFetcher(time.Second, reg), 2),
		Themes:        themes,
		ThumbnailSize: 64,
	})
	mux := http.NewServeMux()
	h.Routes(mux)

	return &fixture{handler: h, mux: mux, blobs: reg, session: sess}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, files map[string][]byte, order ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range order {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func addImages(t *testing.T, f *fixture) map[string]any {
	t.Helper()
	body, ct := multipartBody(t, map[string][]byte{
		"a.jpg":   jpeg(128),
		"b.jpg":   jpeg(256),
		"big.jpg": jpeg(6 * 1024 * 1024),
	}, "a.jpg", "b.jpg", "big.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAddRemoveAndPreview(t *testing.T) {
	f := newFixture(t)

	resp := addImages(t, f)
	rejected := resp["rejected"].([]any)
	require.Len(t, rejected, 1)
	require.Equal(t, "big.jpg", rejected[0].(map[string]any)["name"])

	handles := f.session.Handles()
	require.Len(t, handles, 2)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/blob/"+strings.TrimPrefix(handles[0].Ref, blobs.Scheme), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, jpeg(128), rec.Body.Bytes())

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/images/"+handles[0].Ref, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.session.Handles(), 1)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/blob/"+handles[0].Ref, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/images/"+handles[0].Ref, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/images", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, f.blobs.Stats().Live)
}

func TestAddReportsPartsOverReadLimit(t *testing.T) {
	f := newFixture(t)
	f.handler.maxPartSize = 1024

	body, ct := multipartBody(t, map[string][]byte{
		"a.jpg":    jpeg(128),
		"over.jpg": jpeg(4096),
	}, "a.jpg", "over.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Rejected []struct {
			Name   string `json:"name"`
			Size   int    `json:"size"`
			Reason string `json:"reason"`
		} `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rejected, 1)
	require.Equal(t, "over.jpg", resp.Rejected[0].Name)
	require.Equal(t, 4096, resp.Rejected[0].Size)
	require.Equal(t, "file-too-large", resp.Rejected[0].Reason)

	handles := f.session.Handles()
	require.Len(t, handles, 1)
	require.Equal(t, "a.jpg", handles[0].Name)
	require.Equal(t, jpeg(128), handles[0].Payload)
}

func TestSubmitAndDownloadArchive(t *testing.T) {
	f := newFixture(t)
	addImages(t, f)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/archive", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/session/submit", strings.NewReader(`{"translator":"google"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = f.do(t, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		return f.session.State() == models.StateResults
	}, 5*time.Second, 10*time.Millisecond)
	require.Zero(t, f.blobs.Stats().Live)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	var snap struct {
		State  string `json:"state"`
		Engine string `json:"engine"`
		Images []struct {
			Ref  string `json:"ref"`
			Name string `json:"name"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, "results", snap.State)
	require.Equal(t, "google", snap.Engine)
	require.Len(t, snap.Images, 2)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/archive", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "translated.zip")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	require.Equal(t, "a.jpg", zr.File[0].Name)

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/api/session/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.StateCollecting, f.session.State())
}

func TestSubmitRejections(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/api/session/submit", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	addImages(t, f)
	req := httptest.NewRequest(http.MethodPost, "/api/session/submit", strings.NewReader("translator=babelfish"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = f.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, models.StateCollecting, f.session.State())
}

func TestTheme(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/theme", nil))
	require.JSONEq(t, `{"theme":"light"}`, rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/api/theme", nil))
	require.JSONEq(t, `{"theme":"dark"}`, rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodPut, "/api/theme", strings.NewReader(`{"theme":"light"}`)))
	require.JSONEq(t, `{"theme":"light"}`, rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodPut, "/api/theme", strings.NewReader(`{"theme":"sepia"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
