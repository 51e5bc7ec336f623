package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/albapepper/orderpulse/internal/catalog"
	"github.com/albapepper/orderpulse/internal/cycle"
	"github.com/albapepper/orderpulse/internal/model"
	"github.com/albapepper/orderpulse/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var base = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

// simClock is a simulated clock. Sleep advances time by advance(d) and calls
// onEnd once time reaches end.
type simClock struct {
	mu      sync.Mutex
	now     time.Time
	end     time.Time
	advance func(d time.Duration) time.Duration
	onEnd   func()
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *simClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	step := d
	if c.advance != nil {
		step = c.advance(d)
	}
	c.now = c.now.Add(step)
	done := !c.end.IsZero() && !c.now.Before(c.end)
	c.mu.Unlock()
	if done && c.onEnd != nil {
		c.onEnd()
	}
	return ctx.Err()
}

type recorder struct {
	mu    sync.Mutex
	clock Clock
	at    []time.Time
	reqs  []cycle.Request
}

func (r *recorder) Run(_ context.Context, req cycle.Request) (cycle.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.at = append(r.at, r.clock.Now())
	r.reqs = append(r.reqs, req)
	return cycle.Result{}, nil
}

func (r *recorder) times() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.at...)
}

func opts() Options {
	o := DefaultOptions()
	o.Location = time.UTC
	return o
}

func assertHourly(t *testing.T, got []time.Time) {
	t.Helper()
	if len(got) != 16 {
		t.Fatalf("dispatches = %d, want 16: %v", len(got), got)
	}
	for i, ts := range got {
		if ts.Hour() != 8+i || ts.Minute() != 30 {
			t.Fatalf("dispatch %d at %s, want %02d:30", i, ts.Format("15:04:05"), 8+i)
		}
	}
}

func runUntilEnd(t *testing.T, clock *simClock) []time.Time {
	t.Helper()
	rec := &recorder{clock: clock}
	s := New(rec, clock, opts(), quiet)
	clock.onEnd = s.Stop

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
	if s.State() != Stopped {
		t.Fatalf("state = %s, want stopped", s.State())
	}
	return rec.times()
}

func TestRunDispatchesOncePerHour(t *testing.T) {
	clock := &simClock{now: base.Add(8 * time.Hour), end: base.Add(24 * time.Hour)}
	assertHourly(t, runUntilEnd(t, clock))
}

func TestRunWithEarlyWakeUps(t *testing.T) {
	// Wake-ups arrive every 15 seconds regardless of the requested sleep, so
	// minute 30 is visited four times per hour.
	clock := &simClock{
		now:     base,
		end:     base.Add(24 * time.Hour),
		advance: func(time.Duration) time.Duration { return 15 * time.Second },
	}
	assertHourly(t, runUntilEnd(t, clock))
}

func TestTickMinuteSweepWithDuplicates(t *testing.T) {
	clock := &simClock{}
	rec := &recorder{clock: clock}
	s := New(rec, clock, opts(), quiet)
	ctx := context.Background()

	for m := 8 * 60; m < 24*60; m++ {
		clock.set(base.Add(time.Duration(m) * time.Minute))
		wake := 1
		if m%60 == 30 {
			wake = 3
		}
		for i := 0; i < wake; i++ {
			wait := s.Tick(ctx)
			if wait != DefaultIdleInterval && wait != DefaultDispatchedInterval {
				t.Fatalf("unexpected wait %s", wait)
			}
		}
	}
	assertHourly(t, rec.times())
}

func TestNoDispatchOutsideWindow(t *testing.T) {
	clock := &simClock{}
	rec := &recorder{clock: clock}
	s := New(rec, clock, opts(), quiet)

	for _, ts := range []time.Time{
		base.Add(7*time.Hour + 30*time.Minute),
		base.Add(8*time.Hour + 29*time.Minute),
		base.Add(2*time.Hour + 30*time.Minute),
		base.Add(23*time.Hour + 31*time.Minute),
	} {
		clock.set(ts)
		if wait := s.Tick(context.Background()); wait != DefaultIdleInterval {
			t.Fatalf("tick at %s slept %s", ts.Format("15:04"), wait)
		}
	}
	if n := len(rec.times()); n != 0 {
		t.Fatalf("dispatched %d times outside the window", n)
	}
}

func TestNextDayDispatchesAgain(t *testing.T) {
	clock := &simClock{}
	rec := &recorder{clock: clock}
	s := New(rec, clock, opts(), quiet)

	clock.set(base.Add(9*time.Hour + 30*time.Minute))
	s.Tick(context.Background())
	clock.set(base.AddDate(0, 0, 1).Add(9*time.Hour + 30*time.Minute))
	s.Tick(context.Background())
	if n := len(rec.times()); n != 2 {
		t.Fatalf("dispatches = %d, want 2", n)
	}
}

type blockingDispatcher struct {
	started  chan struct{}
	release  chan struct{}
	ctxErr   error
	finished bool
}

func (b *blockingDispatcher) Run(ctx context.Context, _ cycle.Request) (cycle.Result, error) {
	close(b.started)
	<-b.release
	b.ctxErr = ctx.Err()
	b.finished = true
	return cycle.Result{}, errors.New("sink trouble")
}

func TestStopLetsInFlightCycleFinish(t *testing.T) {
	clock := &simClock{now: base.Add(10*time.Hour + 30*time.Minute)}
	d := &blockingDispatcher{started: make(chan struct{}), release: make(chan struct{})}
	s := New(d, clock, opts(), quiet)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	<-d.started
	if s.State() != Dispatching {
		t.Fatalf("state = %s, want dispatching", s.State())
	}
	s.Stop()
	close(d.release)

	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !d.finished || d.ctxErr != nil {
		t.Fatalf("cycle cut short: finished=%v ctxErr=%v", d.finished, d.ctxErr)
	}
	if s.State() != Stopped {
		t.Fatalf("state = %s, want stopped", s.State())
	}
}

// fixedClock reports a constant time but sleeps for real.
type fixedClock struct {
	realClock
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestStopInterruptsSleep(t *testing.T) {
	rec := &recorder{}
	clock := fixedClock{now: base.Add(3 * time.Hour)}
	rec.clock = clock
	o := opts()
	o.IdleInterval = time.Hour
	s := New(rec, clock, o, quiet)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for s.State() != Idle && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrRunning) {
		t.Fatalf("second run err = %v, want ErrRunning", err)
	}
	s.Stop()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stop did not interrupt the idle sleep")
	}
}

func TestContextCancelStops(t *testing.T) {
	clock := fixedClock{now: base.Add(3 * time.Hour)}
	s := New(&recorder{clock: clock}, clock, opts(), quiet)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.State() != Stopped {
		t.Fatalf("state = %s", s.State())
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{Stopped: "stopped", Idle: "idle", Dispatching: "dispatching"} {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}

func TestDispatchRequest(t *testing.T) {
	for _, summary := range []bool{false, true} {
		clock := &simClock{now: base.Add(12*time.Hour + 30*time.Minute)}
		rec := &recorder{clock: clock}
		o := opts()
		o.Summary = summary
		New(rec, clock, o, quiet).Tick(context.Background())

		if len(rec.reqs) != 1 {
			t.Fatalf("summary=%v: dispatches = %d, want 1", summary, len(rec.reqs))
		}
		want := cycle.Request{Detailed: !summary, Force: true}
		if rec.reqs[0] != want {
			t.Fatalf("summary=%v: request = %+v, want %+v", summary, rec.reqs[0], want)
		}
	}
}

type oneOrder struct{}

func (oneOrder) Sample(string, int) (int, float64) { return 1, 0 }

// The last dispatch of the day must survive the runner's clock ticking past
// the end of the window between the scheduler's check and the cycle.
func TestLastDispatchAtWindowEdge(t *testing.T) {
	mem := store.NewMemory()
	runner := cycle.New(cycle.Deps{
		Store:   mem,
		Catalog: catalog.New([]model.Product{{Code: "p1", Name: "One", Price: 1}}),
		Sampler: oneOrder{},
		Logger:  quiet,
		Now:     func() time.Time { return base.Add(23*time.Hour + 31*time.Minute) },
	}, cycle.Options{EnforceWindow: true, Location: time.UTC})

	clock := &simClock{now: base.Add(23*time.Hour + 30*time.Minute + 59*time.Second)}
	s := New(runner, clock, opts(), quiet)
	if wait := s.Tick(context.Background()); wait != DefaultDispatchedInterval {
		t.Fatalf("wait = %v, want dispatched interval", wait)
	}

	reports := mem.SentReports()
	if len(reports) != 1 || reports[0].Kind != model.ReportDetailed {
		t.Fatalf("audit = %+v, want one detailed report", reports)
	}
}
