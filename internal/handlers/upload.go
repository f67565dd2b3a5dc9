package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/mangatl/mangatl/internal/blobs"
	"github.com/mangatl/mangatl/internal/selection"
)

// maxPartBytes is the default bound on how much of one part is read. Larger
// parts are reported as too large instead of being truncated.
const maxPartBytes = 64 * 1024 * 1024

func (h *Handler) HandleImages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "POST":
		h.handleAdd(w, r)
	case "DELETE":
		if err := h.session.Clear(); err != nil {
			h.writeSessionError(w, err)
			return
		}
		h.writeJSON(w, h.session.Snapshot())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleImageDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != "DELETE" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ref := refFromPath(r.URL.Path, "/api/images/")
	removed, err := h.session.Remove(ref)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	if !removed {
		h.writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, h.session.Snapshot())
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to read files: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		h.writeError(w, "No files in request", http.StatusBadRequest)
		return
	}

	limit := h.maxPartSize
	if limit <= 0 {
		limit = maxPartBytes
	}

	files := make([]blobs.File, 0, len(headers))
	var oversized []selection.Rejection
	for _, fh := range headers {
		data, err := readPart(fh, limit)
		if errors.Is(err, errPartTooLarge) {
			slog.Warn("Upload part over read limit", "name", fh.Filename, "size", fh.Size, "limit", limit)
			oversized = append(oversized, selection.Rejection{
				Name:   fh.Filename,
				Size:   int(fh.Size),
				Reason: selection.ReasonSize,
				Detail: fmt.Sprintf("file is %d bytes, larger than %d bytes", fh.Size, limit),
			})
			continue
		}
		if err != nil {
			h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusBadRequest)
			return
		}
		files = append(files, blobs.File{Name: fh.Filename, Data: data})
	}

	_, rejected, err := h.session.Add(files)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	rejected = append(oversized, rejected...)

	if rejected == nil {
		rejected = []selection.Rejection{}
	}
	response := map[string]any{
		"session":  h.session.Snapshot(),
		"rejected": rejected,
	}
	h.writeJSON(w, response)
}

var errPartTooLarge = errors.New("part exceeds read limit")

// readPart reads a whole part, refusing anything over limit bytes.
func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if fh.Size > limit {
		return nil, errPartTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errPartTooLarge
	}
	return data, nil
}

// refFromPath accepts either the full blob reference or its bare id.
func refFromPath(path, prefix string) string {
	ref := strings.TrimPrefix(path, prefix)
	if !blobs.IsBlobRef(ref) {
		ref = blobs.Scheme + ref
	}
	return ref
}
