// Package listener provides a Postgres LISTEN/NOTIFY consumer for chat front
// end commands. It holds a dedicated pgx connection (not from the pool)
// listening on the `report_requests` channel.
//
// The chat bot publishes with pg_notify('report_requests', payload) where the
// payload is either a report request or a subscription toggle:
//
//	{"action":"report","detailed":true}
//	{"action":"subscription","subscriber_id":42,"kind":"daily","value":false}
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/orderpulse/internal/cycle"
	"github.com/albapepper/orderpulse/internal/model"
)

const (
	// Channel is the NOTIFY channel the consumer listens on.
	Channel          = "report_requests"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Payload actions.
const (
	ActionReport       = "report"
	ActionSubscription = "subscription"
)

// ErrUnknownAction is returned for payloads with an unrecognised action.
var ErrUnknownAction = errors.New("unknown action")

// Runner is what a request is dispatched to. *cycle.Runner satisfies it.
type Runner interface {
	TriggerCycle(ctx context.Context, detailed bool) (cycle.Result, error)
	SetSubscription(ctx context.Context, id int64, kind model.SubscriptionKind, value bool) error
}

// Request is the JSON payload of pg_notify('report_requests', ...).
type Request struct {
	Action       string `json:"action"`
	Detailed     *bool  `json:"detailed,omitempty"`
	SubscriberID int64  `json:"subscriber_id,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Value        bool   `json:"value,omitempty"`
}

// ParseRequest decodes and validates a notification payload. A report
// request without "detailed" asks for the detailed report.
func ParseRequest(payload string) (Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return Request{}, fmt.Errorf("parse payload: %w", err)
	}
	switch req.Action {
	case ActionReport:
		if req.Detailed == nil {
			detailed := true
			req.Detailed = &detailed
		}
	case ActionSubscription:
		if req.SubscriberID == 0 {
			return Request{}, errors.New("subscription request without subscriber_id")
		}
		if _, err := model.ParseSubscriptionKind(req.Kind); err != nil {
			return Request{}, err
		}
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	return req, nil
}

// Start opens a dedicated connection and listens on the report_requests
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, runner Runner, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, runner, logger)
		if ctx.Err() != nil {
			logger.Info("Report request listener stopped (context cancelled)")
			return
		}

		logger.Error("Report request listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, runner Runner, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+Channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", Channel, err)
	}
	logger.Info("Report request listener connected", "channel", Channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		req, err := ParseRequest(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse report request",
				"payload", notification.Payload, "error", err)
			continue
		}
		logger.Info("Report request received", "action", req.Action, "pid", notification.PID)

		// Process asynchronously to avoid blocking the listener
		go func() {
			if err := Handle(ctx, runner, req, logger); err != nil {
				logger.Warn("Report request failed", "action", req.Action, "error", err)
			}
		}()
	}
}

// Handle executes a parsed request against runner.
func Handle(ctx context.Context, runner Runner, req Request, logger *slog.Logger) error {
	switch req.Action {
	case ActionReport:
		detailed := req.Detailed == nil || *req.Detailed
		res, err := runner.TriggerCycle(ctx, detailed)
		if err != nil {
			return fmt.Errorf("trigger cycle: %w", err)
		}
		logger.Info("Requested report sent",
			"kind", res.Kind,
			"hour", res.Hour,
			"delivered", len(res.Fanout.Delivered))
		return nil

	case ActionSubscription:
		kind, err := model.ParseSubscriptionKind(req.Kind)
		if err != nil {
			return err
		}
		if err := runner.SetSubscription(ctx, req.SubscriberID, kind, req.Value); err != nil {
			return err
		}
		logger.Info("Subscription updated",
			"subscriber_id", req.SubscriberID, "kind", kind, "value", req.Value)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
}
