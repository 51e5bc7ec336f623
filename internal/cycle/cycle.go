// Package cycle runs one collect, aggregate, rank, format and dispatch pass
// over the tracked products.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/albapepper/orderpulse/internal/catalog"
	"github.com/albapepper/orderpulse/internal/metrics"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/notifications"
	"github.com/albapepper/orderpulse/internal/ranking"
	"github.com/albapepper/orderpulse/internal/report"
	"github.com/albapepper/orderpulse/internal/simulator"
	"github.com/albapepper/orderpulse/internal/stats"
	"github.com/albapepper/orderpulse/internal/store"
)

// ErrOutsideWindow is returned when a cycle is requested outside the
// operating window and the window is enforced.
var ErrOutsideWindow = errors.New("outside operating window")

// Cycle outcomes, used as metric labels.
const (
	outcomeSuccess       = "success"
	outcomeFailed        = "failed"
	outcomeOutsideWindow = "outside_window"
)

// --------------------------------------------------------------------------
// Operating window
// --------------------------------------------------------------------------

// Window is a time-of-day range, both ends inclusive, as offsets from
// midnight. Containment is checked at minute granularity.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// DefaultWindow is 08:30 to 23:30.
var DefaultWindow = Window{
	Start: 8*time.Hour + 30*time.Minute,
	End:   23*time.Hour + 30*time.Minute,
}

// Contains reports whether the wall-clock minute of t lies inside w.
func (w Window) Contains(t time.Time) bool {
	m := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	return m >= w.Start && m <= w.End
}

// Next returns the first time at or after now whose minute is minute and
// which lies inside w. Seconds are truncated.
func (w Window) Next(now time.Time, minute int) time.Time {
	t := now.Truncate(time.Minute)
	if t.Before(now) {
		t = t.Add(time.Minute)
	}
	t = t.Add(time.Duration((minute-t.Minute()+60)%60) * time.Minute)
	for i := 0; i < 48 && !w.Contains(t); i++ {
		t = t.Add(time.Hour)
	}
	return t
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		int(w.Start.Hours()), int(w.Start.Minutes())%60,
		int(w.End.Hours()), int(w.End.Minutes())%60)
}

// --------------------------------------------------------------------------
// Runner
// --------------------------------------------------------------------------

// Options tune a Runner.
type Options struct {
	TopN          int
	Window        Window
	EnforceWindow bool
	Location      *time.Location
}

// Deps are the collaborators of a Runner. Metrics may be nil.
type Deps struct {
	Store   store.Gateway
	Catalog *catalog.Catalog
	Sampler simulator.Sampler
	Fanout  *notifications.Fanout
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Request selects the report flavour of a cycle. Force skips the window
// check.
type Request struct {
	Detailed bool
	Force    bool
}

// Result describes a completed cycle.
type Result struct {
	Date        string               `json:"date"`
	Hour        int                  `json:"hour"`
	Recorded    int                  `json:"recorded"`
	TotalHourly int                  `json:"total_hourly"`
	TotalDaily  int                  `json:"total_daily"`
	Top         string               `json:"top,omitempty"`
	Kind        string               `json:"kind"`
	Report      string               `json:"report"`
	Fanout      notifications.Result `json:"fanout"`
	Duration    time.Duration        `json:"duration_ns"`
}

// Runner executes cycles. Cycles are serialised: a trigger that arrives while
// another cycle runs waits for it to finish.
type Runner struct {
	store   store.Gateway
	catalog *catalog.Catalog
	sampler simulator.Sampler
	acc     *stats.Accumulator
	fanout  *notifications.Fanout
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	opts    Options

	mu sync.Mutex
}

// New creates a Runner.
func New(d Deps, opts Options) *Runner {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Fanout == nil {
		d.Fanout = notifications.NewFanout(0, d.Logger, d.Metrics)
	}
	if opts.TopN <= 0 {
		opts.TopN = ranking.DefaultLimit
	}
	if opts.Window == (Window{}) {
		opts.Window = DefaultWindow
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Runner{
		store:   d.Store,
		catalog: d.Catalog,
		sampler: d.Sampler,
		acc:     stats.New(d.Store, d.Catalog, d.Logger),
		fanout:  d.Fanout,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     d.Now,
		opts:    opts,
	}
}

// Now returns the current time in the runner's location.
func (r *Runner) Now() time.Time {
	return r.now().In(r.opts.Location)
}

// Window returns the configured operating window.
func (r *Runner) Window() Window {
	return r.opts.Window
}

// TriggerCycle runs one cycle, honouring the window when it is enforced.
func (r *Runner) TriggerCycle(ctx context.Context, detailed bool) (Result, error) {
	return r.Run(ctx, Request{Detailed: detailed})
}

// Run executes one cycle for req.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	now := r.Now()
	if r.opts.EnforceWindow && !req.Force && !r.opts.Window.Contains(now) {
		r.logger.Info("Outside operating hours", "window", r.opts.Window.String(), "time", now.Format("15:04"))
		r.metrics.ObserveCycle(outcomeOutsideWindow, 0)
		return Result{}, ErrOutsideWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	res, err := r.run(ctx, now, req.Detailed)
	res.Duration = time.Since(start)
	if err != nil {
		r.metrics.ObserveCycle(outcomeFailed, res.Duration)
		r.logger.Error("Cycle failed", "hour", now.Hour(), "error", err)
		return res, err
	}
	r.metrics.ObserveCycle(outcomeSuccess, res.Duration)
	r.logger.Info("Cycle complete",
		"hour", res.Hour,
		"recorded", res.Recorded,
		"total_hourly", res.TotalHourly,
		"total_daily", res.TotalDaily,
		"top", res.Top,
		"delivered", len(res.Fanout.Delivered),
		"failed", len(res.Fanout.Failed),
		"duration", res.Duration)
	return res, nil
}

func (r *Runner) run(ctx context.Context, now time.Time, detailed bool) (Result, error) {
	hour := now.Hour()
	res := Result{Date: model.DateKey(now), Hour: hour}

	r.logger.Info("Collecting statistics", "hour", hour)
	for _, p := range r.catalog.Products() {
		count, price := r.sampler.Sample(p.Code, hour)
		if price > 0 {
			p.Price = price
		}
		p.UpdatedAt = now
		if err := r.store.UpsertProduct(ctx, p); err != nil {
			r.logger.Warn("Upsert product failed", "product", p.Code, "error", err)
		}
		n := r.acc.RecordOrders(ctx, p.Code, now, hour, count)
		r.metrics.AddOrders(p.Code, n)
		res.Recorded += n
	}

	entries := r.acc.SnapshotForHour(ctx, now, hour)
	res.TotalHourly, res.TotalDaily = report.Totals(entries)
	top, ok := ranking.Top(entries)
	if !ok {
		// Nothing to report on: neither flavour is formatted or sent.
		return res, fmt.Errorf("format report: %w", report.ErrEmptySnapshot)
	}
	res.Top = top.Code

	if detailed {
		res.Kind = model.ReportDetailed
		res.Report = report.Detailed(entries, ranking.TopN(entries, r.opts.TopN), now)
	} else {
		text, err := report.Summary(entries, now)
		if err != nil {
			return res, fmt.Errorf("format summary: %w", err)
		}
		res.Kind = model.ReportSummary
		res.Report = text
	}

	res.Fanout = r.fanout.Dispatch(ctx, notifications.Report{Text: res.Report, Kind: res.Kind}, now)

	err := r.store.AppendSentReport(ctx, model.SentReport{
		Target:    model.BroadcastTarget,
		Kind:      res.Kind,
		Content:   res.Report,
		CreatedAt: now,
	})
	if err != nil {
		r.logger.Warn("Audit append failed", "error", err)
	}
	return res, nil
}

// --------------------------------------------------------------------------
// Read and delegate surface
// --------------------------------------------------------------------------

// Products returns the tracked products with their current prices.
func (r *Runner) Products() []model.Product {
	return r.catalog.Products()
}

// Snapshot returns the entries for date and hour.
func (r *Runner) Snapshot(ctx context.Context, date time.Time, hour int) []model.Entry {
	return r.acc.SnapshotForHour(ctx, date, hour)
}

// DailyTotals returns product code to total orders for date.
func (r *Runner) DailyTotals(ctx context.Context, date time.Time) map[string]int {
	return r.acc.DailyTotals(ctx, date, 23)
}

// Top returns the n best products of the snapshot for date and hour.
func (r *Runner) Top(ctx context.Context, date time.Time, hour, n int) []model.Entry {
	if n <= 0 {
		n = r.opts.TopN
	}
	return ranking.TopN(r.Snapshot(ctx, date, hour), n)
}

// SetSubscription toggles a subscription flag for a subscriber.
func (r *Runner) SetSubscription(ctx context.Context, id int64, kind model.SubscriptionKind, value bool) error {
	if err := r.store.SetSubscription(ctx, id, kind, value); err != nil {
		return fmt.Errorf("set %s subscription for %d: %w", kind, id, err)
	}
	r.logger.Info("Subscription updated", "subscriber", id, "kind", kind, "value", value)
	return nil
}
