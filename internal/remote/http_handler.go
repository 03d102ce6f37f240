package remote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
)

// Handler exposes manual scan triggering and scan history over HTTP.
type Handler struct {
	orchestrator *Orchestrator
	scans        repository.ScanRunRepository
}

// NewHandler wraps the orchestrator with HTTP endpoints.
func NewHandler(orchestrator *Orchestrator, scans repository.ScanRunRepository) *Handler {
	return &Handler{orchestrator: orchestrator, scans: scans}
}

// Trigger starts a scan manually.
// POST /remote-scans
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	run, err := h.orchestrator.Start(r.Context(), domain.ScanTriggerManual)
	if errors.Is(err, ErrScanInProgress) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

// Status returns one scan run by id.
// GET /remote-scans/{id}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	scanID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid scan id", http.StatusBadRequest)
		return
	}

	run, err := h.scans.GetByID(r.Context(), scanID)
	if err != nil {
		http.Error(w, "scan run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// List pages through past scans, newest first.
// GET /remote-scans
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	runs, err := h.scans.List(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"limit":  limit,
		"offset": offset,
		"runs":   runs,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
