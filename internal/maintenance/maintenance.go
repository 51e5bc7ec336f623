// Package maintenance runs periodic background tasks as Go tickers: the
// retention purge of raw orders and audit rows, deactivation of idle
// subscribers and the active-subscriber gauge.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/orderpulse/internal/metrics"
)

// Config controls maintenance task intervals. Zero duration disables a task,
// as does a zero retention or idle period.
type Config struct {
	CleanupInterval    time.Duration // Retention purge
	DeactivateInterval time.Duration // Idle subscriber sweep
	GaugeInterval      time.Duration // Active subscriber gauge refresh

	RetentionDays      int
	SubscriberIdleDays int
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval:    30 * time.Minute,
		DeactivateInterval: 1 * time.Hour,
		GaugeInterval:      1 * time.Minute,
		RetentionDays:      90,
		SubscriberIdleDays: 180,
	}
}

// Tasks holds the collaborators the tasks run against.
type Tasks struct {
	store   Store
	metrics *metrics.Metrics
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates the task set. m may be nil.
func New(store Store, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Tasks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{store: store, metrics: m, cfg: cfg, logger: logger, now: time.Now}
}

// Start launches all configured maintenance tickers. Every task also runs
// once immediately. Blocks until ctx is cancelled. Intended to be called
// with `go`.
func (t *Tasks) Start(ctx context.Context) {
	t.logger.Info("Maintenance tickers started",
		"cleanup", t.cfg.CleanupInterval,
		"deactivate", t.cfg.DeactivateInterval,
		"gauge", t.cfg.GaugeInterval)

	tickers := make([]*time.Ticker, 0, 3)
	defer func() {
		for _, tk := range tickers {
			tk.Stop()
		}
	}()

	schedule := func(every time.Duration, name string, fn func(context.Context)) {
		if every <= 0 {
			return
		}
		tk := time.NewTicker(every)
		tickers = append(tickers, tk)
		go runLoop(ctx, tk.C, name, func() { fn(ctx) })
	}

	if t.cfg.RetentionDays > 0 {
		schedule(t.cfg.CleanupInterval, "cleanup", func(ctx context.Context) { t.Cleanup(ctx) })
	}
	if t.cfg.SubscriberIdleDays > 0 {
		schedule(t.cfg.DeactivateInterval, "deactivate", func(ctx context.Context) { t.DeactivateIdle(ctx) })
	}
	schedule(t.cfg.GaugeInterval, "gauge", func(ctx context.Context) { t.RefreshGauge(ctx) })

	t.RunOnce(ctx)

	<-ctx.Done()
	t.logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
