package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/albapepper/orderpulse/internal/api/respond"
	"github.com/albapepper/orderpulse/internal/cache"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/report"
)

// SnapshotResponse is the body of GET /snapshot.
type SnapshotResponse struct {
	Date        string        `json:"date"`
	Hour        int           `json:"hour"`
	TotalHourly int           `json:"total_hourly"`
	TotalDaily  int           `json:"total_daily"`
	Entries     []model.Entry `json:"entries"`
}

// DailyResponse is the body of GET /daily.
type DailyResponse struct {
	Date   string         `json:"date"`
	Total  int            `json:"total"`
	Totals map[string]int `json:"totals"`
}

// closedTTL picks the cache TTL: an hour or day still in progress changes
// with every cycle, earlier ones never do.
func closedTTL(now, date time.Time, hour int) time.Duration {
	today := model.DateKey(now)
	key := model.DateKey(date)
	if key < today || (key == today && hour < now.Hour()) {
		return cache.TTLClosedHour
	}
	return cache.TTLCurrentHour
}

// serveCached answers from the cache when possible, otherwise builds the
// body with load, stores it and writes it.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, load func() (interface{}, error)) {
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	v, err := load()
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Failed to build response", err.Error())
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to encode response")
		return
	}
	etag := h.cache.Set(key, data, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, false)
}

// GetSnapshot returns every product's hourly and day-to-date orders.
// @Summary Hourly snapshot
// @Description Per-product orders for one hour plus the day-to-date totals through that hour.
// @Tags stats
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), default today"
// @Param hour query int false "Hour 0-23, default current hour"
// @Success 200 {object} SnapshotResponse
// @Failure 400 {object} respond.ErrorResponse
// @Router /snapshot [get]
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	now := h.runner.Now()
	date, ok := h.dateParam(w, r, now)
	if !ok {
		return
	}
	hour, ok := intParam(w, r, "hour", now.Hour(), 0, 23)
	if !ok {
		return
	}

	key := fmt.Sprintf("snapshot:%s:%d", model.DateKey(date), hour)
	h.serveCached(w, r, key, closedTTL(now, date, hour), func() (interface{}, error) {
		entries := h.runner.Snapshot(r.Context(), date, hour)
		hourly, daily := report.Totals(entries)
		return SnapshotResponse{
			Date:        model.DateKey(date),
			Hour:        hour,
			TotalHourly: hourly,
			TotalDaily:  daily,
			Entries:     entries,
		}, nil
	})
}

// GetDaily returns total orders per product for a date.
// @Summary Daily totals
// @Tags stats
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), default today"
// @Success 200 {object} DailyResponse
// @Failure 400 {object} respond.ErrorResponse
// @Router /daily [get]
func (h *Handler) GetDaily(w http.ResponseWriter, r *http.Request) {
	now := h.runner.Now()
	date, ok := h.dateParam(w, r, now)
	if !ok {
		return
	}

	key := "daily:" + model.DateKey(date)
	h.serveCached(w, r, key, closedTTL(now, date, 24), func() (interface{}, error) {
		totals := h.runner.DailyTotals(r.Context(), date)
		sum := 0
		for _, n := range totals {
			sum += n
		}
		return DailyResponse{Date: model.DateKey(date), Total: sum, Totals: totals}, nil
	})
}

// GetTop returns the best products of an hour.
// @Summary Top products
// @Tags stats
// @Produce json
// @Param hour query int false "Hour 0-23, default current hour"
// @Param n query int false "Number of products, default TOP_N"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /top [get]
func (h *Handler) GetTop(w http.ResponseWriter, r *http.Request) {
	now := h.runner.Now()
	date, ok := h.dateParam(w, r, now)
	if !ok {
		return
	}
	hour, ok := intParam(w, r, "hour", now.Hour(), 0, 23)
	if !ok {
		return
	}
	n, ok := intParam(w, r, "n", h.cfg.TopN, 1, 100)
	if !ok {
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"date": model.DateKey(date),
		"hour": hour,
		"top":  h.runner.Top(r.Context(), date, hour, n),
	})
}

// GetDashboard returns the headline numbers shown on the dashboard.
// @Summary Dashboard stats
// @Description Orders today and this hour, active subscribers, tracked products and the next report time.
// @Tags stats
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /dashboard [get]
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.runner.Now()

	entries := h.runner.Snapshot(ctx, now, now.Hour())
	hourly, daily := report.Totals(entries)

	active, err := h.store.CountActiveSubscribers(ctx)
	if err != nil {
		h.logger.Warn("Count subscribers failed", "error", err)
	}
	next := h.runner.Window().Next(now, h.cfg.DispatchMinute)

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"date":               model.DateKey(now),
		"orders_today":       daily,
		"orders_this_hour":   hourly,
		"active_subscribers": active,
		"products":           len(entries),
		"next_report":        next.Format(time.RFC3339),
	})
}

// GetRecentOrders lists the latest recorded orders.
// @Summary Recent orders
// @Tags stats
// @Produce json
// @Param limit query int false "Max orders (1-500), default 20"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} respond.ErrorResponse
// @Router /orders/recent [get]
func (h *Handler) GetRecentOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", 20, 1, 500)
	if !ok {
		return
	}
	orders, err := h.store.RecentOrders(r.Context(), limit)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Could not load orders", err.Error())
		return
	}
	if orders == nil {
		orders = []model.OrderEvent{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"orders": orders})
}
