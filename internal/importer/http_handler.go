package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
	"github.com/partsdesk/importer/internal/tracker"
)

const maxUploadBytes = 64 << 20

// Handler exposes the import pipeline and its audit surface over HTTP.
type Handler struct {
	service  *Service
	runs     repository.ImportRunRepository
	progress *tracker.Tracker
}

// NewHandler wraps the service with HTTP endpoints.
func NewHandler(service *Service, runs repository.ImportRunRepository, progress *tracker.Tracker) *Handler {
	return &Handler{service: service, runs: runs, progress: progress}
}

// Upload accepts a multipart file upload and starts an import.
// POST /imports
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	entityType, err := domain.ParseEntityType(r.FormValue("entityType"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	run, err := h.service.Submit(r.Context(), Request{
		EntityType: entityType,
		SourceType: domain.SourceTypeManual,
		FileName:   header.Filename,
		Payload:    payload,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if IsSchemaError(err) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]any{
			"runId": run.ID,
			"error": err.Error(),
		})
		return
	}

	code := http.StatusOK
	if !run.Status.Terminal() {
		code = http.StatusAccepted
	}
	writeJSON(w, code, run)
}

type progressPayload struct {
	Current    int     `json:"current"`
	Total      *int    `json:"total"`
	Percentage float64 `json:"percentage"`
}

type statusResponse struct {
	RunID       uuid.UUID        `json:"runId"`
	Status      domain.RunStatus `json:"status"`
	Progress    progressPayload  `json:"progress"`
	StartedAt   time.Time        `json:"startedAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Error       string           `json:"error,omitempty"`
	Results     *runResults      `json:"results,omitempty"`
}

type runResults struct {
	TotalRows    int `json:"totalRows"`
	SuccessCount int `json:"successCount"`
	ErrorCount   int `json:"errorCount"`
}

// Status answers fast polling from the live tracker, falling back to the
// durable run record after eviction or restart.
// GET /imports/{id}/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.runs.GetByID(r.Context(), runID)
	if err != nil {
		http.Error(w, "import run not found", http.StatusNotFound)
		return
	}

	resp := statusResponse{
		RunID:       run.ID,
		Status:      run.Status,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	if run.ErrorMessage != nil {
		resp.Error = *run.ErrorMessage
	}

	if snapshot, ok := h.progress.Get(runID); ok {
		resp.Status = snapshot.Status
		resp.Progress = progressPayload{
			Current:    snapshot.Current,
			Total:      snapshot.Total,
			Percentage: snapshot.Percentage(),
		}
		if snapshot.Error != "" {
			resp.Error = snapshot.Error
		}
	} else if run.TotalRows != nil {
		done := run.SuccessCount + run.ErrorCount
		pct := 0.0
		if *run.TotalRows > 0 {
			pct = float64(done) / float64(*run.TotalRows) * 100
		}
		resp.Progress = progressPayload{Current: done, Total: run.TotalRows, Percentage: pct}
	}

	if run.Status == domain.RunStatusCompleted && run.TotalRows != nil {
		resp.Results = &runResults{
			TotalRows:    *run.TotalRows,
			SuccessCount: run.SuccessCount,
			ErrorCount:   run.ErrorCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// RowErrors pages through the preserved failing rows for corrective
// re-upload.
// GET /imports/{id}/errors
func (h *Handler) RowErrors(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	limit, offset := pagination(r)
	rowErrors, total, err := h.runs.ListRowErrors(r.Context(), runID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"errors": rowErrors,
	})
}

// ListRuns pages through the append-only audit trail.
// GET /imports
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	runs, total, err := h.runs.List(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"runs":   runs,
	})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
