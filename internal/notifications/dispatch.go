package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type registration struct {
	sink   Sink
	policy Policy
}

// Fanout delivers reports to the registered sinks.
type Fanout struct {
	sinks    []registration
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
}

// NewFanout creates an empty fanout. timeout bounds each sink delivery;
// zero means DefaultSinkTimeout. observer may be nil.
func NewFanout(timeout time.Duration, logger *slog.Logger, observer Observer) *Fanout {
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{timeout: timeout, logger: logger, observer: observer}
}

// Register adds a sink gated by policy. A nil policy means Always.
func (f *Fanout) Register(s Sink, p Policy) *Fanout {
	if p == nil {
		p = Always
	}
	f.sinks = append(f.sinks, registration{sink: s, policy: p})
	return f
}

// Sinks returns the registered sink names in registration order.
func (f *Fanout) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, r := range f.sinks {
		names = append(names, r.sink.Name())
	}
	return names
}

// Dispatch pushes r to every sink whose policy fires at now and waits for
// all of them. It never returns early because of a failing sink.
func (f *Fanout) Dispatch(ctx context.Context, r Report, now time.Time) Result {
	outcomes := make([]error, len(f.sinks))
	fired := make([]bool, len(f.sinks))

	var wg sync.WaitGroup
	for i, reg := range f.sinks {
		if !reg.policy(now) {
			continue
		}
		fired[i] = true
		wg.Add(1)
		go func(i int, s Sink) {
			defer wg.Done()
			outcomes[i] = f.deliver(ctx, s, r, now)
		}(i, reg.sink)
	}
	wg.Wait()

	var res Result
	for i, reg := range f.sinks {
		name := reg.sink.Name()
		switch {
		case !fired[i]:
			res.Skipped = append(res.Skipped, name)
			f.observe(name, ResultSkipped)
		case outcomes[i] != nil:
			serr := &SinkError{Sink: name, Err: outcomes[i]}
			res.Failed = append(res.Failed, serr)
			f.observe(name, ResultFailed)
			f.logger.Error("Sink delivery failed", "sink", name, "error", outcomes[i])
		default:
			res.Delivered = append(res.Delivered, name)
			f.observe(name, ResultDelivered)
		}
	}
	return res
}

// deliver runs one sink under the per-sink timeout and converts a panic into
// an error. A sink that ignores its context is abandoned at the deadline.
func (f *Fanout) deliver(ctx context.Context, s Sink, r Report, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("panic: %v", p)
			}
		}()
		done <- s.Deliver(ctx, r, now)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delivery aborted: %w", ctx.Err())
	}
}

func (f *Fanout) observe(sink, result string) {
	if f.observer != nil {
		f.observer.ObserveSink(sink, result)
	}
}
