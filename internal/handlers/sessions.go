package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mangatl/mangatl/internal/models"
)

func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, h.session.Snapshot())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSubmit starts the upload and answers immediately; clients poll
// /api/session until the state leaves processing.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, err := engineFromRequest(r)
	if err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	var engine models.Engine
	if name != "" {
		engine, err = models.ParseEngine(name)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	// the upload outlives this request
	if _, err := h.session.SubmitAsync(context.WithoutCancel(r.Context()), engine); err != nil {
		h.writeSessionError(w, err)
		return
	}

	h.writeJSONStatus(w, http.StatusAccepted, h.session.Snapshot())
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.session.Reset(); err != nil {
		h.writeSessionError(w, err)
		return
	}
	h.writeJSON(w, h.session.Snapshot())
}

func engineFromRequest(r *http.Request) (string, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var request struct {
			Engine string `json:"translator"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			return "", err
		}
		return request.Engine, nil
	}
	return r.FormValue("translator"), nil
}
