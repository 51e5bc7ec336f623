// Package store is the persistence gateway: products, individual orders,
// hourly rollups, subscribers and the sent-report audit log.
//
// Three backends implement Gateway: Postgres (pgx, production), SQLite (gorm,
// single-node and local runs) and Memory (tests and dry runs). Every backend
// records an order as one atomic insert-event-then-insert-or-increment-bucket
// operation, so concurrent writers never lose an update and a redelivered
// event is never counted twice.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albapepper/orderpulse/internal/model"
)

var (
	// ErrUnavailable wraps every backend failure. Callers log it and fall
	// back to an empty result.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrSubscriberNotFound is returned when toggling a flag for an unknown
	// subscriber.
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// Gateway is the full persistence surface.
type Gateway interface {
	UpsertProduct(ctx context.Context, p model.Product) error
	ListProducts(ctx context.Context) ([]model.Product, error)

	// RecordOrder stores ev and increments its (product, date, hour) bucket.
	// Returns false, nil when ev.ID was already recorded.
	RecordOrder(ctx context.Context, ev model.OrderEvent) (bool, error)
	RecentOrders(ctx context.Context, limit int) ([]model.OrderEvent, error)

	// HourlyBuckets returns the buckets for date/hour, highest count first.
	HourlyBuckets(ctx context.Context, date time.Time, hour int) ([]model.Bucket, error)
	// DailyTotals sums buckets per product for date over hours <= throughHour.
	DailyTotals(ctx context.Context, date time.Time, throughHour int) (map[string]int, error)

	UpsertSubscriber(ctx context.Context, s model.Subscriber) error
	SetSubscription(ctx context.Context, id int64, kind model.SubscriptionKind, value bool) error
	// Subscribers returns active subscribers with the kind flag set.
	Subscribers(ctx context.Context, kind model.SubscriptionKind) ([]model.Subscriber, error)
	// RecentSubscribers returns up to limit subscribers, active or not, most
	// recently active first. A limit of zero or less returns all of them.
	RecentSubscribers(ctx context.Context, limit int) ([]model.Subscriber, error)
	CountActiveSubscribers(ctx context.Context) (int, error)
	DeactivateIdleSubscribers(ctx context.Context, before time.Time) (int64, error)

	AppendSentReport(ctx context.Context, r model.SentReport) error

	// PurgeBefore removes raw orders and sent reports older than cutoff.
	// Hourly rollups are kept.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func clampHour(h int) int {
	return min(max(h, 0), 23)
}

// subscriptionColumn maps a kind to its bot_users column.
func subscriptionColumn(kind model.SubscriptionKind) (string, error) {
	switch kind {
	case model.SubscriptionDaily:
		return "subscribed_to_daily", nil
	case model.SubscriptionAlerts:
		return "subscribed_to_alerts", nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnknownSubscription, kind)
}
