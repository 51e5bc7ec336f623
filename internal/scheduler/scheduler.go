// Package scheduler drives report cycles once per hour inside the operating
// window.
//
// The loop wakes up, checks the wall clock and either dispatches a cycle (at
// the dispatch minute of an hour not yet served) or goes back to sleep. A
// record of the last dispatched hour keeps a delayed or repeated wake-up from
// dispatching twice in the same hour.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/albapepper/orderpulse/internal/cycle"
)

// ErrRunning is returned by Run when the loop is already active.
var ErrRunning = errors.New("scheduler already running")

// State is the scheduler lifecycle state.
type State int32

const (
	Stopped State = iota
	Idle
	Dispatching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	}
	return "stopped"
}

// Clock abstracts wall time so tests can simulate a day in microseconds.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatcher runs one cycle. *cycle.Runner satisfies it.
type Dispatcher interface {
	Run(ctx context.Context, req cycle.Request) (cycle.Result, error)
}

// Options configure the loop. Zero intervals and an empty window take the
// defaults; a dispatch minute outside 0-59 becomes DefaultDispatchMinute.
type Options struct {
	Window             cycle.Window
	DispatchMinute     int
	IdleInterval       time.Duration
	DispatchedInterval time.Duration
	Location           *time.Location
	Summary            bool // dispatch summary reports instead of detailed ones
}

const (
	DefaultDispatchMinute     = 30
	DefaultIdleInterval       = 60 * time.Second
	DefaultDispatchedInterval = 61 * time.Second
	hourKeyLayout             = "2006-01-02T15"
)

// DefaultOptions dispatches at minute 30 of every hour in 08:30-23:30.
func DefaultOptions() Options {
	return Options{
		Window:             cycle.DefaultWindow,
		DispatchMinute:     DefaultDispatchMinute,
		IdleInterval:       DefaultIdleInterval,
		DispatchedInterval: DefaultDispatchedInterval,
	}
}

// Scheduler is the Stopped/Idle/Dispatching state machine.
type Scheduler struct {
	dispatcher Dispatcher
	clock      Clock
	logger     *slog.Logger
	opts       Options

	state          atomic.Int32
	stopping       atomic.Bool
	lastDispatched string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a stopped scheduler. clock may be nil for wall time.
func New(d Dispatcher, clock Clock, opts Options, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Window == (cycle.Window{}) {
		opts.Window = cycle.DefaultWindow
	}
	if opts.DispatchMinute < 0 || opts.DispatchMinute > 59 {
		opts.DispatchMinute = DefaultDispatchMinute
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	if opts.DispatchedInterval <= 0 {
		opts.DispatchedInterval = DefaultDispatchedInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Scheduler{dispatcher: d, clock: clock, logger: logger, opts: opts}
}

// State returns the current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run moves the scheduler to Idle and loops until ctx is cancelled or Stop
// is called. A cycle in progress always runs to completion first.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Stopped), int32(Idle)) {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.stopping.Store(false)
		s.state.Store(int32(Stopped))
		s.logger.Info("Scheduler stopped")
	}()

	s.logger.Info("Scheduler started",
		"window", s.opts.Window.String(),
		"dispatch_minute", s.opts.DispatchMinute)

	for {
		if s.stopping.Load() || ctx.Err() != nil {
			return nil
		}
		wait := s.Tick(ctx)
		if s.stopping.Load() {
			return nil
		}
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// Stop asks the loop to exit at its next wake-up and interrupts the current
// sleep. It does not wait for an in-flight cycle.
func (s *Scheduler) Stop() {
	s.stopping.Store(true)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

// Tick evaluates one wake-up and returns how long to sleep before the next.
// Run calls it from its own goroutine; do not call it while Run is active.
func (s *Scheduler) Tick(ctx context.Context) time.Duration {
	now := s.clock.Now().In(s.opts.Location)
	if !s.due(now) {
		return s.opts.IdleInterval
	}

	s.lastDispatched = now.Format(hourKeyLayout)
	s.state.Store(int32(Dispatching))
	s.logger.Info("Dispatching hourly cycle", "time", now.Format("15:04"))

	// The cycle is detached from cancellation so Stop never cuts it short.
	// The window was checked against now above; the runner must not check it
	// again against a later clock reading.
	req := cycle.Request{Detailed: !s.opts.Summary, Force: true}
	if _, err := s.dispatcher.Run(context.WithoutCancel(ctx), req); err != nil {
		s.logger.Error("Scheduled cycle failed", "hour", now.Hour(), "error", err)
	}

	s.state.Store(int32(Idle))
	return s.opts.DispatchedInterval
}

func (s *Scheduler) due(now time.Time) bool {
	return now.Minute() == s.opts.DispatchMinute &&
		s.opts.Window.Contains(now) &&
		now.Format(hourKeyLayout) != s.lastDispatched
}
