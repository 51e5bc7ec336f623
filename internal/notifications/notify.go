// Package notifications pushes finished reports to a set of named sinks.
//
// Each cycle the Fanout asks every registered sink's Policy whether it fires
// for the current time, then delivers to the firing sinks concurrently. A
// sink that fails, panics or exceeds its timeout is logged and reported in the
// Result; the other sinks are unaffected.
package notifications

import (
	"encoding/json"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	ruleWidth          = 60
	previewLines       = 5
	isoLayout          = "2006-01-02T15:04:05.000000"
	subjectLayout      = "15:04"
	DefaultSinkTimeout = 10 * time.Second
	DefaultEmailEvery  = 3
)

// Sink names.
const (
	SinkConsole = "console"
	SinkFile    = "file"
	SinkChat    = "chat"
	SinkEmail   = "email"
)

// Delivery outcomes, used as metric labels.
const (
	ResultDelivered = "delivered"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Report is one rendered report handed to the sinks.
type Report struct {
	Text string
	Kind string // model.ReportDetailed | model.ReportSummary
}

// SinkError is a delivery failure of a single sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Result lists what happened to each registered sink, in registration order.
type Result struct {
	Delivered []string     `json:"delivered"`
	Skipped   []string     `json:"skipped"`
	Failed    []*SinkError `json:"-"`
}

// MarshalJSON lists failed sinks by name and keeps their errors keyed by
// sink, since SinkError carries an error value that has no JSON form.
func (r Result) MarshalJSON() ([]byte, error) {
	errs := make(map[string]string, len(r.Failed))
	for _, f := range r.Failed {
		errs[f.Sink] = f.Err.Error()
	}
	return json.Marshal(struct {
		Delivered []string          `json:"delivered"`
		Skipped   []string          `json:"skipped"`
		Failed    []string          `json:"failed"`
		Errors    map[string]string `json:"errors,omitempty"`
	}{
		Delivered: r.Delivered,
		Skipped:   r.Skipped,
		Failed:    r.FailedSinks(),
		Errors:    errs,
	})
}

// FailedSinks returns the names of the sinks that failed.
func (r Result) FailedSinks() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Sink)
	}
	return out
}
