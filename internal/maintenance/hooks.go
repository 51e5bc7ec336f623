package maintenance

import (
	"context"
	"time"
)

// Store is the slice of the persistence gateway maintenance needs.
type Store interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeactivateIdleSubscribers(ctx context.Context, before time.Time) (int64, error)
	CountActiveSubscribers(ctx context.Context) (int, error)
}

const day = 24 * time.Hour

// RunOnce runs every enabled task a single time, in order: purge, idle
// sweep, gauge refresh.
func (t *Tasks) RunOnce(ctx context.Context) {
	if t.cfg.RetentionDays > 0 {
		t.Cleanup(ctx)
	}
	if t.cfg.SubscriberIdleDays > 0 {
		t.DeactivateIdle(ctx)
	}
	t.RefreshGauge(ctx)
}

// Cleanup removes raw orders and sent-report audit rows older than the
// retention period. Hourly buckets are kept.
func (t *Tasks) Cleanup(ctx context.Context) int64 {
	start := time.Now()
	cutoff := t.now().Add(-time.Duration(t.cfg.RetentionDays) * day)
	n, err := t.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		t.logger.Warn("Cleanup: failed to purge old rows", "cutoff", cutoff, "error", err)
		return 0
	}
	if n > 0 {
		t.logger.Info("Cleanup: purged old rows",
			"count", n, "cutoff", cutoff, "duration", time.Since(start).Round(time.Millisecond))
	}
	return n
}

// DeactivateIdle marks subscribers inactive when they have not interacted
// for the idle period.
func (t *Tasks) DeactivateIdle(ctx context.Context) int64 {
	before := t.now().Add(-time.Duration(t.cfg.SubscriberIdleDays) * day)
	n, err := t.store.DeactivateIdleSubscribers(ctx, before)
	if err != nil {
		t.logger.Warn("Deactivate: failed to sweep idle subscribers", "error", err)
		return 0
	}
	if n > 0 {
		t.logger.Info("Deactivate: idle subscribers deactivated", "count", n, "before", before)
	}
	return n
}

// RefreshGauge publishes the active subscriber count.
func (t *Tasks) RefreshGauge(ctx context.Context) {
	n, err := t.store.CountActiveSubscribers(ctx)
	if err != nil {
		t.logger.Warn("Gauge: failed to count subscribers", "error", err)
		return
	}
	t.metrics.SetActiveSubscribers(n)
}
