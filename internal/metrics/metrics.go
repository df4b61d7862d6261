// Package metrics defines the review workflow's instrumentation points.
// Implementations can export to Prometheus or be swapped for NoOp in tests.
package metrics

import "time"

// Recorder collects workflow, notification and delivery metrics.
type Recorder interface {
	// Workflow
	RecordTransition(action string, changed bool)

	// Notification log
	RecordNotification(origin string)

	// Delivery dispatcher
	RecordDelivery(success bool, duration time.Duration)
	RecordDeliveryDropped()
	RecordQueueDepth(depth int)

	// Statement intake
	RecordIngestion(transactions, flagged int)
}

// Notification origins.
const (
	OriginFlag       = "flag"
	OriginEscalation = "escalation"
	OriginRetrigger  = "retrigger"
)

// NoOp discards all metrics.
type NoOp struct{}

func (NoOp) RecordTransition(string, bool)             {}
func (NoOp) RecordNotification(string)                 {}
func (NoOp) RecordDelivery(bool, time.Duration)        {}
func (NoOp) RecordDeliveryDropped()                    {}
func (NoOp) RecordQueueDepth(int)                      {}
func (NoOp) RecordIngestion(transactions, flagged int) {}
