package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/albapepper/orderpulse/internal/metrics"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func activeGauge(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "orderpulse_active_subscribers" {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("gauge not registered")
	return 0
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	now := time.Now()

	old := model.Day(now.Add(-100 * day)).Add(10 * time.Hour)
	for i, ts := range []time.Time{old, old.Add(time.Hour), now.Add(-time.Hour)} {
		ev := model.OrderEvent{ID: string(rune('a' + i)), ProductCode: "p", Timestamp: ts}
		if _, err := mem.RecordOrder(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	_ = mem.AppendSentReport(ctx, model.SentReport{Kind: model.ReportSummary, CreatedAt: old})
	_ = mem.UpsertSubscriber(ctx, model.Subscriber{ID: 1})
	_ = mem.UpsertSubscriber(ctx, model.Subscriber{ID: 2})

	reg := prometheus.NewRegistry()
	tasks := New(mem, metrics.New(reg, metrics.Config{}), Config{RetentionDays: 90, SubscriberIdleDays: 180}, quiet)
	tasks.RunOnce(ctx)

	recent, _ := mem.RecentOrders(ctx, 10)
	if len(recent) != 1 || recent[0].ID != "c" {
		t.Fatalf("recent orders after purge = %+v", recent)
	}
	if len(mem.SentReports()) != 0 {
		t.Fatalf("old audit rows kept")
	}
	if got, _ := mem.DailyTotals(ctx, old, 23); got["p"] != 2 {
		t.Fatalf("rollups must survive the purge, got %v", got)
	}
	if got := activeGauge(t, reg); got != 2 {
		t.Fatalf("active gauge = %v, want 2", got)
	}

	// Half a year later nobody has interacted.
	tasks.now = func() time.Time { return now.Add(200 * day) }
	if n := tasks.DeactivateIdle(ctx); n != 2 {
		t.Fatalf("deactivated = %d, want 2", n)
	}
	tasks.RefreshGauge(ctx)
	if got := activeGauge(t, reg); got != 0 {
		t.Fatalf("active gauge = %v, want 0", got)
	}
}

func TestDisabledTasks(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ev := model.OrderEvent{ID: "x", ProductCode: "p", Timestamp: time.Now().Add(-1000 * day)}
	if _, err := mem.RecordOrder(ctx, ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	New(mem, nil, Config{}, quiet).RunOnce(ctx)

	if recent, _ := mem.RecentOrders(ctx, 10); len(recent) != 1 {
		t.Fatalf("zero retention must disable the purge")
	}
}

type failing struct{}

var errDown = errors.New("down")

func (failing) PurgeBefore(context.Context, time.Time) (int64, error) { return 0, errDown }
func (failing) DeactivateIdleSubscribers(context.Context, time.Time) (int64, error) {
	return 0, errDown
}
func (failing) CountActiveSubscribers(context.Context) (int, error) { return 0, errDown }

func TestFailuresAreLogged(t *testing.T) {
	tasks := New(failing{}, nil, DefaultConfig(), quiet)
	if tasks.Cleanup(context.Background()) != 0 || tasks.DeactivateIdle(context.Background()) != 0 {
		t.Fatalf("failed tasks must report zero rows")
	}
	tasks.RefreshGauge(context.Background())
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(store.NewMemory(), nil, DefaultConfig(), quiet).Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
