package handlers

import (
	"net/http"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/asr-api/backend/internal/api/middleware"
	"github.com/asr-api/backend/internal/gpu"
	"github.com/asr-api/backend/internal/job"
)

var startTime = time.Now()

// HistoryPruner deletes old request history
type HistoryPruner interface {
	PruneRequests(before time.Time) (int64, error)
}

// BrokerStatus reports whether the event broker connection is up
type BrokerStatus interface {
	Healthy() bool
}

type AdminHandler struct {
	history     HistoryPruner
	limiter     *middleware.RateLimiter
	tracker     *job.Tracker
	broker      BrokerStatus
	scratchPath string
}

// NewAdminHandler builds the admin API. limiter and broker may be nil.
func NewAdminHandler(history HistoryPruner, limiter *middleware.RateLimiter, tracker *job.Tracker, broker BrokerStatus, scratchPath string) *AdminHandler {
	return &AdminHandler{history: history, limiter: limiter, tracker: tracker, broker: broker, scratchPath: scratchPath}
}

// DashboardStats returns accelerator, scratch disk, runtime and job stats
func (h *AdminHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	var diskTotal, diskFree, diskUsed uint64
	if h.scratchPath != "" {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(h.scratchPath, &stat); err == nil {
			diskTotal = stat.Blocks * uint64(stat.Bsize)
			diskFree = stat.Bavail * uint64(stat.Bsize)
			diskUsed = diskTotal - diskFree
		}
	}

	var memStat runtime.MemStats
	runtime.ReadMemStats(&memStat)

	jsonResponse(w, map[string]interface{}{
		"gpus": gpu.Detect(),
		"scratch": map[string]uint64{
			"total": diskTotal,
			"used":  diskUsed,
			"free":  diskFree,
		},
		"system": map[string]interface{}{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"mem_alloc":      memStat.Alloc,
			"mem_sys":        memStat.Sys,
		},
		"jobs":   h.tracker.Stats(),
		"events": h.broker != nil && h.broker.Healthy(),
	}, http.StatusOK)
}

// RateLimitStatus lists the clients currently tracked by the limiter
func (h *AdminHandler) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	if h.limiter == nil {
		jsonResponse(w, middleware.RateLimitStatus{Entries: []middleware.RateLimitEntry{}}, http.StatusOK)
		return
	}
	jsonResponse(w, h.limiter.Status(), http.StatusOK)
}

// ClearRateLimits resets every client's counter
func (h *AdminHandler) ClearRateLimits(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		h.limiter.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// PruneHistory deletes request history older than ?days= (default 30)
func (h *AdminHandler) PruneHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	removed, err := h.history.PruneRequests(time.Now().AddDate(0, 0, -days))
	if err != nil {
		jsonError(w, "failed to prune history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]int64{"removed": removed}, http.StatusOK)
}
