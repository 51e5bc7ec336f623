// Package model holds the shared domain types: products, order events,
// hourly buckets, snapshot entries, subscribers and the sent-report audit log.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Catalog
// --------------------------------------------------------------------------

// Product is a tracked marketplace article.
type Product struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --------------------------------------------------------------------------
// Orders and rollups
// --------------------------------------------------------------------------

// OrderEvent is a single order. ID is the idempotency key: recording the same
// event twice must not count it twice.
type OrderEvent struct {
	ID          string    `json:"id"`
	ProductCode string    `json:"product_code"`
	Timestamp   time.Time `json:"timestamp"`
}

// Date returns the calendar date of the event.
func (e OrderEvent) Date() time.Time {
	return Day(e.Timestamp)
}

// Hour returns the hour of day (0-23) of the event.
func (e OrderEvent) Hour() int {
	return e.Timestamp.Hour()
}

// Bucket is the order count for one (product, date, hour) key.
type Bucket struct {
	ProductCode string    `json:"product_code"`
	Date        time.Time `json:"date"`
	Hour        int       `json:"hour"`
	Count       int       `json:"count"`
}

// Entry is one row of an hourly snapshot.
type Entry struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	HourlyOrders int     `json:"hourly_orders"`
	DailyOrders  int     `json:"daily_orders"`
	Price        float64 `json:"price"`
}

// Line renders the entry the way every report lists products.
func (e Entry) Line() string {
	return fmt.Sprintf("%s - %s: %d / %d (price: %.2f RUB)",
		e.Code, e.Name, e.HourlyOrders, e.DailyOrders, e.Price)
}

// Day truncates t to midnight UTC of its calendar date (in t's location).
// Dates are keyed this way in every storage backend.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats a date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// --------------------------------------------------------------------------
// Subscribers
// --------------------------------------------------------------------------

// SubscriptionKind selects one of the two independent subscription flags.
type SubscriptionKind string

const (
	SubscriptionDaily  SubscriptionKind = "daily"
	SubscriptionAlerts SubscriptionKind = "alerts"
)

// ErrUnknownSubscription is returned for anything but daily or alerts.
var ErrUnknownSubscription = errors.New("unknown subscription kind")

// ParseSubscriptionKind validates a subscription kind name.
func ParseSubscriptionKind(s string) (SubscriptionKind, error) {
	switch SubscriptionKind(strings.ToLower(strings.TrimSpace(s))) {
	case SubscriptionDaily:
		return SubscriptionDaily, nil
	case SubscriptionAlerts:
		return SubscriptionAlerts, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSubscription, s)
}

// Subscriber is a chat user who receives reports.
type Subscriber struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Active     bool      `json:"active"`
	Daily      bool      `json:"daily"`
	Alerts     bool      `json:"alerts"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Subscribed reports whether the flag for kind is set.
func (s Subscriber) Subscribed(kind SubscriptionKind) bool {
	switch kind {
	case SubscriptionDaily:
		return s.Daily
	case SubscriptionAlerts:
		return s.Alerts
	}
	return false
}

// --------------------------------------------------------------------------
// Audit
// --------------------------------------------------------------------------

// BroadcastTarget marks a sent report not addressed to a single subscriber.
const BroadcastTarget int64 = 0

// Report kinds recorded in the audit log.
const (
	ReportDetailed = "hourly_detailed"
	ReportSummary  = "hourly_summary"
	ReportPreview  = "chat_preview"
)

// SentReport is an append-only audit entry.
type SentReport struct {
	Target    int64     `json:"target"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
