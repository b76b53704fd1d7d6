package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asr-api/backend/internal/job"
)

type JobHandler struct {
	tracker *job.Tracker
}

func NewJobHandler(tracker *job.Tracker) *JobHandler {
	return &JobHandler{tracker: tracker}
}

// ListJobs returns tracked transcriptions, newest first
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.tracker.List(), http.StatusOK)
}

// GetJob returns a single job by ID
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing job ID", http.StatusBadRequest)
		return
	}

	j, err := h.tracker.Get(id)
	if err != nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, j, http.StatusOK)
}

// CancelJob cancels a pending or running transcription
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing job ID", http.StatusBadRequest)
		return
	}

	switch err := h.tracker.Cancel(id); {
	case errors.Is(err, job.ErrNotFound):
		jsonError(w, "job not found", http.StatusNotFound)
	case errors.Is(err, job.ErrNotActive):
		jsonError(w, "job already finished", http.StatusConflict)
	case err != nil:
		jsonError(w, "failed to cancel job: "+err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
