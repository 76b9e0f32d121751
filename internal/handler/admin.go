package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/vivi-tora/mfc/internal/service"
	"github.com/vivi-tora/mfc/pkg/response"
)

// AdminHandler reports process and backend status.
type AdminHandler struct {
	batches      *service.BatchService
	logStoreType string
	cacheType    string
	startTime    time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(batches *service.BatchService, logStoreType, cacheType string) *AdminHandler {
	return &AdminHandler{
		batches:      batches,
		logStoreType: logStoreType,
		cacheType:    cacheType,
		startTime:    time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["log_store"] = h.logStoreType
	stats["cache"] = h.cacheType

	batch := map[string]interface{}{"running": false}
	if h.batches != nil {
		if id, ok := h.batches.Running(); ok {
			batch["running"] = true
			batch["id"] = id
			if progress, err := h.batches.Get(r.Context(), id); err == nil {
				batch["current"] = progress.Current
				batch["total"] = progress.Total
			}
		}
	}
	stats["batch"] = batch

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
