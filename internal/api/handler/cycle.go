package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/albapepper/orderpulse/internal/api/respond"
	"github.com/albapepper/orderpulse/internal/cycle"
	"github.com/albapepper/orderpulse/internal/report"
	"github.com/albapepper/orderpulse/internal/store"
)

// TriggerCycle runs one collect-and-report cycle on demand.
// @Summary Trigger a report cycle
// @Description Samples orders for every product, records them, formats a report and sends it to every sink. Outside the operating window the request is refused unless force=true.
// @Tags cycle
// @Produce json
// @Param detailed query bool false "Detailed report (default true) or one-line summary"
// @Param force query bool false "Run even outside the operating window"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Router /cycle [post]
func (h *Handler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	detailed, ok := boolParam(w, r, "detailed", true)
	if !ok {
		return
	}
	force, ok := boolParam(w, r, "force", false)
	if !ok {
		return
	}

	res, err := h.runner.Run(r.Context(), cycle.Request{Detailed: detailed, Force: force})
	switch {
	case errors.Is(err, cycle.ErrOutsideWindow):
		respond.WriteErrorDetail(w, http.StatusConflict, "OUTSIDE_WINDOW",
			"Reports are only generated inside the operating window", h.runner.Window().String())
		return
	case errors.Is(err, report.ErrEmptySnapshot):
		respond.WriteError(w, http.StatusUnprocessableEntity, "EMPTY_SNAPSHOT", "No products are tracked")
		return
	case errors.Is(err, store.ErrUnavailable):
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage unavailable", err.Error())
		return
	case err != nil:
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "CYCLE_FAILED", "Cycle failed", err.Error())
		return
	}
	h.invalidateReads()

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"date":         res.Date,
		"hour":         res.Hour,
		"kind":         res.Kind,
		"recorded":     res.Recorded,
		"total_hourly": res.TotalHourly,
		"total_daily":  res.TotalDaily,
		"top":          res.Top,
		"report":       res.Report,
		"delivered":    res.Fanout.Delivered,
		"skipped":      res.Fanout.Skipped,
		"failed":       res.Fanout.FailedSinks(),
		"duration_ms":  res.Duration.Milliseconds(),
	})
}

func boolParam(w http.ResponseWriter, r *http.Request, name string, def bool) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_PARAMETER", name+" must be true or false")
		return false, false
	}
	return v, true
}
