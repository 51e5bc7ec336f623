// Package handler provides HTTP handlers for all API endpoints.
// Reads go through the cycle runner and the storage gateway; hot read
// endpoints are served from the in-memory cache with ETags.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/orderpulse/internal/api/respond"
	"github.com/albapepper/orderpulse/internal/cache"
	"github.com/albapepper/orderpulse/internal/config"
	"github.com/albapepper/orderpulse/internal/cycle"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/store"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	runner *cycle.Runner
	store  store.Gateway
	cache  *cache.Cache
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(runner *cycle.Runner, gw store.Gateway, c *cache.Cache, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, store: gw, cache: c, cfg: cfg, logger: logger}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status and the operating window.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "OrderPulse API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"window":  h.runner.Window().String(),
		"storage": h.cfg.StorageDriver,
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies storage connectivity.
// @Summary Storage health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Storage health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"driver":    h.cfg.StorageDriver,
			"error":     "Storage connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"driver":    h.cfg.StorageDriver,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --------------------------------------------------------------------------
// Query parameter helpers
// --------------------------------------------------------------------------

// dateParam parses ?date=YYYY-MM-DD, defaulting to today in the runner's
// location. ok is false after an error response has been written.
func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request, now time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return now, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD", err.Error())
		return time.Time{}, false
	}
	return d, true
}

// intParam parses an integer query parameter within [lo, hi].
func intParam(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_"+strings.ToUpper(name),
			name+" must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi))
		return 0, false
	}
	return n, true
}
