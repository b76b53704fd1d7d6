package handlers

import (
	"net/http"
	"strconv"

	"github.com/asr-api/backend/internal/db/models"
)

// HistoryStore lists finished requests
type HistoryStore interface {
	ListRequests(limit int) ([]models.RequestRecord, error)
}

type HistoryHandler struct {
	store HistoryStore
}

func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// List returns recent requests; ?limit= caps the count (default 50, max 500)
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	records, err := h.store.ListRequests(limit)
	if err != nil {
		jsonError(w, "failed to list history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, records, http.StatusOK)
}
