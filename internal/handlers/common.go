package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mangatl/mangatl/internal/archive"
	"github.com/mangatl/mangatl/internal/blobs"
	"github.com/mangatl/mangatl/internal/session"
	"github.com/mangatl/mangatl/internal/theme"
)

type Handler struct {
	session       *session.Session
	blobs         *blobs.Registry
	exporter      *archive.Exporter
	themes        *theme.Store
	thumbnailSize int
	maxPartSize   int64
}

// Options wires the collaborators a Handler serves. MaxPartSize bounds one
// uploaded file; 0 selects 64 MiB.
type Options struct {
	Session       *session.Session
	Blobs         *blobs.Registry
	Exporter      *archive.Exporter
	Themes        *theme.Store
	ThumbnailSize int
	MaxPartSize   int64
}

func New(opts Options) *Handler {
	return &Handler{
		session:       opts.Session,
		blobs:         opts.Blobs,
		exporter:      opts.Exporter,
		themes:        opts.Themes,
		thumbnailSize: opts.ThumbnailSize,
		maxPartSize:   opts.MaxPartSize,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/session", h.HandleSession)
	mux.HandleFunc("/api/session/submit", h.HandleSubmit)
	mux.HandleFunc("/api/session/reset", h.HandleReset)
	mux.HandleFunc("/api/images", h.HandleImages)
	mux.HandleFunc("/api/images/", h.HandleImageDetail)
	mux.HandleFunc("/api/archive", h.HandleArchive)
	mux.HandleFunc("/api/theme", h.HandleTheme)
	mux.HandleFunc("/blob/", h.HandleBlob)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// writeSessionError maps session rejections onto status codes.
func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotCollecting):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrEmptyCollection), errors.Is(err, session.ErrInvalidTransition):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}
