package notifications

import (
	"context"

	"github.com/albapepper/orderpulse/internal/model"
)

// AuditStore is the persistence the chat sink needs: the active daily
// subscribers and the sent-report log.
type AuditStore interface {
	Subscribers(ctx context.Context, kind model.SubscriptionKind) ([]model.Subscriber, error)
	AppendSentReport(ctx context.Context, r model.SentReport) error
}

// Observer receives one call per sink per dispatch. *metrics.Metrics
// satisfies it.
type Observer interface {
	ObserveSink(sink, result string)
}
