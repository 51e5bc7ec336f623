// Package stats maintains per-product hourly and daily order counts.
//
// Persisted rollups are the only source of truth: every write goes through
// Store.RecordOrder, which inserts the event and increments its bucket
// atomically, and every read is answered from the stored buckets.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/orderpulse/internal/catalog"
	"github.com/albapepper/orderpulse/internal/model"
)

// Store is the slice of the persistence gateway the accumulator needs.
type Store interface {
	RecordOrder(ctx context.Context, ev model.OrderEvent) (bool, error)
	HourlyBuckets(ctx context.Context, date time.Time, hour int) ([]model.Bucket, error)
	DailyTotals(ctx context.Context, date time.Time, throughHour int) (map[string]int, error)
}

// Accumulator records orders and answers snapshot queries.
type Accumulator struct {
	store   Store
	catalog *catalog.Catalog
	logger  *slog.Logger
	newID   func() string
}

// New creates an Accumulator over store. Snapshots list the products of c.
func New(store Store, c *catalog.Catalog, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{store: store, catalog: c, logger: logger, newID: uuid.NewString}
}

// Record stores a single event. A previously seen event id returns false.
func (a *Accumulator) Record(ctx context.Context, ev model.OrderEvent) (bool, error) {
	if ev.ID == "" {
		ev.ID = a.newID()
	}
	return a.store.RecordOrder(ctx, ev)
}

// RecordOrders creates count new events for code in the given date and hour
// and records each one. Timestamps are spread evenly across the hour.
// Returns how many events were counted; storage failures are logged and the
// remaining events are skipped.
func (a *Accumulator) RecordOrders(ctx context.Context, code string, date time.Time, hour, count int) int {
	if count <= 0 {
		return 0
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
	step := time.Hour / time.Duration(count)

	recorded := 0
	for i := 0; i < count; i++ {
		ev := model.OrderEvent{
			ID:          a.newID(),
			ProductCode: code,
			Timestamp:   start.Add(time.Duration(i) * step),
		}
		ok, err := a.store.RecordOrder(ctx, ev)
		if err != nil {
			a.logger.Error("Record order failed", "product", code, "hour", hour, "error", err)
			return recorded
		}
		if ok {
			recorded++
		}
	}
	return recorded
}

// DailyTotal returns the number of orders for code on date across all hours.
func (a *Accumulator) DailyTotal(ctx context.Context, code string, date time.Time) int {
	totals, err := a.store.DailyTotals(ctx, date, 23)
	if err != nil {
		a.logger.Error("Daily totals failed", "date", model.DateKey(date), "error", err)
		return 0
	}
	return totals[code]
}

// DailyTotals returns product code to day-to-date total through hour.
func (a *Accumulator) DailyTotals(ctx context.Context, date time.Time, throughHour int) map[string]int {
	totals, err := a.store.DailyTotals(ctx, date, throughHour)
	if err != nil {
		a.logger.Error("Daily totals failed", "date", model.DateKey(date), "error", err)
		return map[string]int{}
	}
	return totals
}

// SnapshotForHour returns one entry per tracked product, in catalog order,
// with the hour's count, the day-to-date count through that hour and the
// current price. Products without orders appear with zeros.
func (a *Accumulator) SnapshotForHour(ctx context.Context, date time.Time, hour int) []model.Entry {
	hourly := make(map[string]int)
	buckets, err := a.store.HourlyBuckets(ctx, date, hour)
	if err != nil {
		a.logger.Error("Hourly buckets failed", "date", model.DateKey(date), "hour", hour, "error", err)
	}
	for _, b := range buckets {
		hourly[b.ProductCode] = b.Count
	}
	daily := a.DailyTotals(ctx, date, hour)

	products := a.catalog.Products()
	entries := make([]model.Entry, 0, len(products))
	for _, p := range products {
		entries = append(entries, model.Entry{
			Code:         p.Code,
			Name:         p.Name,
			HourlyOrders: hourly[p.Code],
			DailyOrders:  daily[p.Code],
			Price:        p.Price,
		})
	}
	return entries
}
