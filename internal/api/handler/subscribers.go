package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/orderpulse/internal/api/respond"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/store"
)

type subscriberRequest struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type subscriptionRequest struct {
	Value *bool `json:"value"`
}

// UpsertSubscriber registers a chat user or refreshes their profile. New
// subscribers receive the daily report.
// @Summary Register subscriber
// @Tags subscribers
// @Accept json
// @Produce json
// @Param body body subscriberRequest true "Subscriber"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /subscribers [post]
func (h *Handler) UpsertSubscriber(w http.ResponseWriter, r *http.Request) {
	var req subscriberRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Body must be a subscriber object", err.Error())
		return
	}
	if req.ID == 0 {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_ID", "id is required")
		return
	}
	err := h.store.UpsertSubscriber(r.Context(), model.Subscriber{
		ID:        req.ID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Could not save subscriber", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"id": req.ID, "status": "subscribed"})
}

// SetSubscription toggles the daily or alerts flag of a subscriber.
// @Summary Toggle subscription
// @Tags subscribers
// @Accept json
// @Produce json
// @Param id path int true "Subscriber id"
// @Param kind path string true "Subscription kind" Enums(daily, alerts)
// @Param body body subscriptionRequest true "New value"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /subscribers/{id}/subscriptions/{kind} [put]
func (h *Handler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "id must be an integer")
		return
	}
	kind, err := model.ParseSubscriptionKind(chi.URLParam(r, "kind"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "UNKNOWN_SUBSCRIPTION", "kind must be daily or alerts")
		return
	}
	var req subscriptionRequest
	if err := respond.DecodeJSON(r, &req); err != nil || req.Value == nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", `body must be {"value": true|false}`)
		return
	}

	err = h.runner.SetSubscription(r.Context(), id, kind, *req.Value)
	switch {
	case errors.Is(err, store.ErrSubscriberNotFound):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Unknown subscriber")
		return
	case err != nil:
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Could not update subscription", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"kind":  kind,
		"value": *req.Value,
	})
}

// GetSubscribers lists subscribers, most recently active first. Inactive and
// unsubscribed users are included so the flags can be inspected.
// @Summary Recent subscribers
// @Tags subscribers
// @Produce json
// @Param limit query int false "Maximum rows (1-100)" default(10)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /subscribers [get]
func (h *Handler) GetSubscribers(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", 10, 1, 100)
	if !ok {
		return
	}
	subs, err := h.store.RecentSubscribers(r.Context(), limit)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Could not load subscribers", err.Error())
		return
	}
	if subs == nil {
		subs = []model.Subscriber{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"subscribers": subs,
		"count":       len(subs),
	})
}
