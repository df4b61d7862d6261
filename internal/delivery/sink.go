// Package delivery hands recorded notifications to the customer-contact
// collaborator. Recording a notification never waits for transport: callers
// enqueue on a Dispatcher and a worker pool drives the Sink.
package delivery

import (
	"context"

	"fraudreview/internal/logger"
	"fraudreview/internal/models"
)

// Sink performs the actual customer contact for a notification.
type Sink interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// LogSink logs notifications instead of contacting anyone. It is used when
// no delivery webhook is configured.
type LogSink struct{}

// Deliver logs the notification and reports success.
func (LogSink) Deliver(_ context.Context, n models.Notification) error {
	logger.Named("delivery").Infow("notification delivery (log sink)",
		"notification_id", n.ID,
		"transaction_id", n.TransactionID,
		"type", n.Type,
		"status", n.Status,
		"merchant", n.Merchant,
		"amount", n.Amount.StringFixed(2),
	)
	return nil
}
