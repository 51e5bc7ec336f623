package cycle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/albapepper/orderpulse/internal/catalog"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/notifications"
	"github.com/albapepper/orderpulse/internal/report"
	"github.com/albapepper/orderpulse/internal/simulator"
	"github.com/albapepper/orderpulse/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixedSampler map[string]int

func (f fixedSampler) Sample(code string, _ int) (int, float64) {
	return f[code], 0
}

type failingSink struct{}

func (failingSink) Name() string { return "broken" }

func (failingSink) Deliver(context.Context, notifications.Report, time.Time) error {
	return errors.New("unreachable")
}

func clockAt(hour, minute int) func() time.Time {
	return func() time.Time { return time.Date(2026, 6, 15, hour, minute, 0, 0, time.UTC) }
}

type fixture struct {
	runner  *Runner
	mem     *store.Memory
	console *bytes.Buffer
}

func newFixture(t *testing.T, now func() time.Time, opts Options, sampler simulator.Sampler, products []model.Product) fixture {
	t.Helper()
	mem := store.NewMemory()
	var console bytes.Buffer
	fan := notifications.NewFanout(time.Second, quiet, nil).
		Register(notifications.NewConsoleSink(&console), notifications.Always).
		Register(failingSink{}, notifications.Always)
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	r := New(Deps{
		Store:   mem,
		Catalog: catalog.New(products),
		Sampler: sampler,
		Fanout:  fan,
		Logger:  quiet,
		Now:     now,
	}, opts)
	return fixture{runner: r, mem: mem, console: &console}
}

var threeProducts = []model.Product{
	{Code: "p1", Name: "One", Price: 10},
	{Code: "p2", Name: "Two", Price: 20},
	{Code: "p3", Name: "Three", Price: 30},
}

func TestDetailedCycleEndToEnd(t *testing.T) {
	f := newFixture(t, clockAt(14, 30), Options{TopN: 2},
		fixedSampler{"p1": 5, "p2": 3, "p3": 1}, threeProducts)
	ctx := context.Background()

	res, err := f.runner.TriggerCycle(ctx, true)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.TotalHourly != 9 || res.TotalDaily != 9 || res.Recorded != 9 || res.Top != "p1" || res.Hour != 14 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Report, "Orders this hour: 9") ||
		!strings.Contains(res.Report, "1. p1 - One") ||
		!strings.Contains(res.Report, "2. p2 - Two") ||
		strings.Contains(res.Report, "3. p3") {
		t.Fatalf("report:\n%s", res.Report)
	}
	if !strings.Contains(f.console.String(), "Orders this hour: 9") {
		t.Fatalf("console sink not reached")
	}
	if len(res.Fanout.Delivered) != 1 || len(res.Fanout.Failed) != 1 {
		t.Fatalf("fanout = %+v", res.Fanout)
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if !strings.Contains(string(data), `"failed":["broken"]`) {
		t.Fatalf("failed sink missing from %s", data)
	}

	reports := f.mem.SentReports()
	if len(reports) != 1 || reports[0].Target != model.BroadcastTarget || reports[0].Kind != model.ReportDetailed {
		t.Fatalf("audit = %+v", reports)
	}
	products, _ := f.mem.ListProducts(ctx)
	if len(products) != 3 {
		t.Fatalf("products persisted = %d, want 3", len(products))
	}

	// A second cycle in the same hour accumulates.
	res, err = f.runner.TriggerCycle(ctx, true)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if res.TotalHourly != 18 || res.TotalDaily != 18 {
		t.Fatalf("second result = %+v", res)
	}
}

func TestSummaryCycle(t *testing.T) {
	f := newFixture(t, clockAt(9, 30), Options{}, fixedSampler{"p2": 4}, threeProducts)
	res, err := f.runner.TriggerCycle(context.Background(), false)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.Kind != model.ReportSummary || res.Report != "09:30 | Hour: 4 | Day: 4 | Top: p2 (4)" {
		t.Fatalf("summary = %q (%s)", res.Report, res.Kind)
	}
}

func TestCycleEmptyCatalog(t *testing.T) {
	for _, detailed := range []bool{true, false} {
		f := newFixture(t, clockAt(9, 30), Options{}, fixedSampler{}, nil)
		if _, err := f.runner.TriggerCycle(context.Background(), detailed); !errors.Is(err, report.ErrEmptySnapshot) {
			t.Fatalf("detailed=%v: err = %v, want empty snapshot", detailed, err)
		}
		if n := len(f.mem.SentReports()); n != 0 {
			t.Fatalf("detailed=%v: failed cycle wrote %d audit rows", detailed, n)
		}
		if f.console.Len() != 0 {
			t.Fatalf("detailed=%v: empty report dispatched:\n%s", detailed, f.console.String())
		}
	}
}

func TestWindowEnforcement(t *testing.T) {
	f := newFixture(t, clockAt(7, 15), Options{EnforceWindow: true},
		fixedSampler{"p1": 1}, threeProducts)
	ctx := context.Background()

	if _, err := f.runner.TriggerCycle(ctx, true); !errors.Is(err, ErrOutsideWindow) {
		t.Fatalf("err = %v, want ErrOutsideWindow", err)
	}
	if f.console.Len() != 0 {
		t.Fatalf("sinks ran outside the window")
	}
	res, err := f.runner.Run(ctx, Request{Detailed: true, Force: true})
	if err != nil || res.TotalHourly != 1 {
		t.Fatalf("forced cycle: %+v, %v", res, err)
	}
}

func TestConcurrentTriggersAreSerialised(t *testing.T) {
	f := newFixture(t, clockAt(20, 30), Options{}, fixedSampler{"p1": 5, "p2": 3, "p3": 1}, threeProducts)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.runner.TriggerCycle(ctx, true); err != nil {
				t.Errorf("cycle: %v", err)
			}
		}()
	}
	wg.Wait()

	snap := f.runner.Snapshot(ctx, clockAt(20, 30)(), 20)
	if snap[0].HourlyOrders != 25 || snap[1].HourlyOrders != 15 || snap[2].HourlyOrders != 5 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if n := len(f.mem.SentReports()); n != 5 {
		t.Fatalf("audit rows = %d, want 5", n)
	}
}

func TestRandomSamplerCycle(t *testing.T) {
	c := catalog.NewDefault()
	mem := store.NewMemory()
	r := New(Deps{
		Store:   mem,
		Catalog: c,
		Sampler: simulator.NewRandomSampler(c, rand.New(rand.NewPCG(7, 11))),
		Fanout:  notifications.NewFanout(time.Second, quiet, nil),
		Logger:  quiet,
		Now:     clockAt(12, 30),
	}, Options{Location: time.UTC})

	res, err := r.TriggerCycle(context.Background(), true)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.TotalHourly != res.Recorded {
		t.Fatalf("hourly %d != recorded %d", res.TotalHourly, res.Recorded)
	}
	totals := r.DailyTotals(context.Background(), clockAt(12, 30)())
	sum := 0
	for _, n := range totals {
		sum += n
	}
	if sum != res.TotalDaily {
		t.Fatalf("daily totals sum %d != %d", sum, res.TotalDaily)
	}
	stored, _ := mem.ListProducts(context.Background())
	for _, p := range stored {
		cur, _ := c.Get(p.Code)
		if p.Price != cur.Price {
			t.Fatalf("stored price %v != catalog price %v for %s", p.Price, cur.Price, p.Code)
		}
	}
}

func TestTopAndSubscriptions(t *testing.T) {
	f := newFixture(t, clockAt(15, 30), Options{TopN: 1}, fixedSampler{"p1": 1, "p2": 6, "p3": 2}, threeProducts)
	ctx := context.Background()
	if _, err := f.runner.TriggerCycle(ctx, true); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	now := clockAt(15, 30)()
	if top := f.runner.Top(ctx, now, 15, 0); len(top) != 1 || top[0].Code != "p2" {
		t.Fatalf("top = %+v", top)
	}
	if top := f.runner.Top(ctx, now, 15, 2); len(top) != 2 || top[1].Code != "p3" {
		t.Fatalf("top 2 = %+v", top)
	}

	if err := f.runner.SetSubscription(ctx, 42, model.SubscriptionDaily, true); !errors.Is(err, store.ErrSubscriberNotFound) {
		t.Fatalf("unknown subscriber err = %v", err)
	}
	_ = f.mem.UpsertSubscriber(ctx, model.Subscriber{ID: 42})
	if err := f.runner.SetSubscription(ctx, 42, model.SubscriptionAlerts, true); err != nil {
		t.Fatalf("set alerts: %v", err)
	}
	subs, _ := f.mem.Subscribers(ctx, model.SubscriptionAlerts)
	if len(subs) != 1 {
		t.Fatalf("alert subscribers = %+v", subs)
	}
}

func TestWindowContains(t *testing.T) {
	tests := []struct {
		hour, minute, second int
		want                 bool
	}{
		{8, 29, 59, false},
		{8, 30, 0, true},
		{12, 0, 0, true},
		{23, 30, 45, true},
		{23, 31, 0, false},
		{0, 0, 0, false},
	}
	for _, tt := range tests {
		ts := time.Date(2026, 1, 1, tt.hour, tt.minute, tt.second, 0, time.UTC)
		if got := DefaultWindow.Contains(ts); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", ts.Format("15:04:05"), got, tt.want)
		}
	}
	if DefaultWindow.String() != "08:30-23:30" {
		t.Errorf("String() = %q", DefaultWindow.String())
	}
}

func TestWindowNext(t *testing.T) {
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		now  time.Duration
		want time.Duration
	}{
		{0, 8*time.Hour + 30*time.Minute},
		{8*time.Hour + 30*time.Minute, 8*time.Hour + 30*time.Minute},
		{8*time.Hour + 30*time.Minute + time.Second, 9*time.Hour + 30*time.Minute},
		{12*time.Hour + 5*time.Minute, 12*time.Hour + 30*time.Minute},
		{23*time.Hour + 45*time.Minute, 32*time.Hour + 30*time.Minute},
	}
	for _, tt := range tests {
		if got := DefaultWindow.Next(day.Add(tt.now), 30); !got.Equal(day.Add(tt.want)) {
			t.Errorf("Next(%s) = %s, want %s", day.Add(tt.now), got, day.Add(tt.want))
		}
	}
}
