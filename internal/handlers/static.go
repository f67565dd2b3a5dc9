package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mangatl/mangatl/internal/archive"
	"github.com/mangatl/mangatl/internal/images"
	"github.com/mangatl/mangatl/internal/models"
	"github.com/mangatl/mangatl/internal/theme"
)

// HandleBlob serves the bytes behind a live blob reference, which is how a
// UI renders previews. ?thumb=1 scales the image down first.
func (h *Handler) HandleBlob(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ref := refFromPath(r.URL.Path, "/blob/")
	data, ok := h.blobs.Open(ref)
	if !ok {
		h.writeError(w, "Image not found", http.StatusNotFound)
		return
	}

	contentType := http.DetectContentType(data)
	if r.URL.Query().Get("thumb") != "" {
		size := h.thumbnailSize
		if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 {
			size = s
		}
		thumb, ct, err := images.Thumbnail(data, size)
		if err != nil {
			slog.Warn("Failed to build thumbnail, serving original", "ref", ref, "err", err)
		} else {
			data, contentType = thumb, ct
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		slog.Error("Unable to write image", "ref", ref, "err", err)
	}
}

// HandleArchive streams the results as one zip. It answers 204 when no
// result could be fetched.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.session.State() != models.StateResults {
		h.writeError(w, "No results to download", http.StatusConflict)
		return
	}

	dl := &responseDownloader{w: w}
	err := h.exporter.ExportArchive(r.Context(), h.session.Results(), dl)
	if err != nil {
		var berr *archive.ArchiveBuildError
		if errors.As(err, &berr) && dl.started {
			// headers are gone; nothing more can be reported
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !dl.started {
		w.WriteHeader(http.StatusNoContent)
	}
}

type responseDownloader struct {
	w       http.ResponseWriter
	started bool
}

func (d *responseDownloader) Deliver(filename string, data []byte) error {
	d.started = true
	d.w.Header().Set("Content-Type", "application/zip")
	d.w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	d.w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, err := d.w.Write(data)
	return err
}

func (h *Handler) HandleTheme(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, map[string]theme.Theme{"theme": h.themes.Current()})
	case "PUT":
		var request struct {
			Theme string `json:"theme"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		t, err := theme.Parse(request.Theme)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.themes.Set(t); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, map[string]theme.Theme{"theme": t})
	case "POST":
		t, err := h.themes.Toggle()
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, map[string]theme.Theme{"theme": t})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
