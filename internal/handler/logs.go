package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/vivi-tora/mfc/internal/export"
	"github.com/vivi-tora/mfc/internal/repository"
	"github.com/vivi-tora/mfc/pkg/apierror"
	"github.com/vivi-tora/mfc/pkg/response"
)

// MaxLogLimit caps how many entries one request may read.
const MaxLogLimit = 1000

// LogsHandler reads the submission log.
type LogsHandler struct {
	store repository.LogRepository
}

// NewLogsHandler creates a logs handler.
func NewLogsHandler(store repository.LogRepository) *LogsHandler {
	return &LogsHandler{store: store}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return repository.DefaultReadLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, apierror.BadRequest("limit must be a positive integer")
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	return limit, nil
}

// List handles GET /api/v1/logs
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	entries, err := h.store.Read(r.Context(), limit)
	if err != nil {
		log.Printf("[LogsHandler] Read failed: %v", err)
		response.Error(w, apierror.InternalError("Failed to read logs"))
		return
	}
	response.JSONWithMeta(w, http.StatusOK, entries, limit, len(entries))
}

// Export handles GET /api/v1/logs/export.csv
func (h *LogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	entries, err := h.store.Read(r.Context(), limit)
	if err != nil {
		log.Printf("[LogsHandler] Read failed: %v", err)
		response.Error(w, apierror.InternalError("Failed to read logs"))
		return
	}

	filename := fmt.Sprintf("mfc_logs_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, entries); err != nil {
		log.Printf("[LogsHandler] Export write failed: %v", err)
	}
}
