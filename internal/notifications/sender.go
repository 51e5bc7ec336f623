package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/albapepper/orderpulse/internal/model"
)

// Sink delivers a report to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, r Report, now time.Time) error
}

// Preview returns the first n lines of text followed by an ellipsis line.
func Preview(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n") + "\n..."
}

// SyncWriter serialises writes to an underlying writer. Sinks run
// concurrently, so sinks sharing one terminal or buffer must share one
// SyncWriter.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w. A writer that is already a *SyncWriter is returned
// as is.
func NewSyncWriter(w io.Writer) *SyncWriter {
	if sw, ok := w.(*SyncWriter); ok {
		return sw
	}
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// --------------------------------------------------------------------------
// Console
// --------------------------------------------------------------------------

// ConsoleSink writes the report framed by "=" rules.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink writes to w, or stdout when w is nil.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Name() string { return SinkConsole }

func (s *ConsoleSink) Deliver(_ context.Context, r Report, _ time.Time) error {
	rule := strings.Repeat("=", ruleWidth)
	_, err := fmt.Fprintf(s.w, "\n%s\n%s\n%s\n\n", rule, r.Text, rule)
	return err
}

// --------------------------------------------------------------------------
// File log
// --------------------------------------------------------------------------

// FileSink appends each report to a log file with a timestamp line and a
// "-" separator.
type FileSink struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFileSink(path string, logger *slog.Logger) *FileSink {
	return &FileSink{path: path, logger: logger}
}

func (s *FileSink) Name() string { return SinkFile }

func (s *FileSink) Deliver(_ context.Context, r Report, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report log: %w", err)
	}
	_, err = fmt.Fprintf(f, "\n%s\n%s\n%s\n", now.Format(isoLayout), r.Text, strings.Repeat("-", ruleWidth))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write report log: %w", err)
	}
	s.logger.Info("Report saved", "path", s.path)
	return nil
}

// --------------------------------------------------------------------------
// Chat broadcast
// --------------------------------------------------------------------------

// ChatSink posts a short preview of the report to every active daily
// subscriber and records one audit row per recipient. With no subscribers a
// single broadcast row is recorded. A nil store only prints the preview.
type ChatSink struct {
	store  AuditStore
	w      io.Writer
	logger *slog.Logger
}

func NewChatSink(store AuditStore, w io.Writer, logger *slog.Logger) *ChatSink {
	if w == nil {
		w = os.Stdout
	}
	return &ChatSink{store: store, w: w, logger: logger}
}

func (s *ChatSink) Name() string { return SinkChat }

func (s *ChatSink) Deliver(ctx context.Context, r Report, now time.Time) error {
	preview := Preview(r.Text, previewLines)
	if _, err := fmt.Fprintf(s.w, "[Chat] Sending message:\n%s\n", preview); err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}

	subs, err := s.store.Subscribers(ctx, model.SubscriptionDaily)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	targets := []int64{model.BroadcastTarget}
	if len(subs) > 0 {
		targets = targets[:0]
		for _, sub := range subs {
			targets = append(targets, sub.ID)
		}
	}

	for _, id := range targets {
		err := s.store.AppendSentReport(ctx, model.SentReport{
			Target:    id,
			Kind:      model.ReportPreview,
			Content:   preview,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("record chat delivery to %d: %w", id, err)
		}
	}
	s.logger.Info("Chat preview sent", "recipients", len(subs))
	return nil
}

// --------------------------------------------------------------------------
// Email digest
// --------------------------------------------------------------------------

// EmailSink simulates an email digest by logging recipient, subject and
// length. Nil-safe: a nil *EmailSink delivers nothing.
type EmailSink struct {
	recipient string
	logger    *slog.Logger
}

// NewEmailSink returns nil when recipient is empty (email disabled).
func NewEmailSink(recipient string, logger *slog.Logger) *EmailSink {
	if recipient == "" {
		return nil
	}
	return &EmailSink{recipient: recipient, logger: logger}
}

func (s *EmailSink) Name() string { return SinkEmail }

func (s *EmailSink) Deliver(_ context.Context, r Report, now time.Time) error {
	if s == nil {
		return nil
	}
	s.logger.Info("Email report sent",
		"recipient", s.recipient,
		"subject", "Order report for "+now.Format(subjectLayout),
		"length", len([]rune(r.Text)))
	return nil
}
