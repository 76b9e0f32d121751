package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vivi-tora/mfc/internal/service"
	"github.com/vivi-tora/mfc/pkg/response"
)

// BatchHandler exposes batch progress and cancellation.
type BatchHandler struct {
	batches *service.BatchService
}

// NewBatchHandler creates a batch handler.
func NewBatchHandler(batches *service.BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// Get handles GET /api/v1/batches/{id}
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	progress, err := h.batches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, progress)
}

// Cancel handles DELETE /api/v1/batches/{id}
func (h *BatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.batches.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	progress, err := h.batches.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusAccepted, progress)
}
