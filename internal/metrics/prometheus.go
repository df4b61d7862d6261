package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Recorder with prometheus collectors.
type Prometheus struct {
	transitions        *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	deliveries         *prometheus.CounterVec
	deliveryLatency    prometheus.Histogram
	droppedDelivery    prometheus.Counter
	queueDepth         prometheus.Gauge
	ingestedRows       prometheus.Counter
	ingestedFlagged    prometheus.Counter
	ingestedStatements prometheus.Counter
}

// NewPrometheus creates collectors under the given namespace.
func NewPrometheus(namespace string) *Prometheus {
	return &Prometheus{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_transitions_total",
				Help:      "Review actions applied, by action and whether the status changed",
			},
			[]string{"action", "changed"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_recorded_total",
				Help:      "Notifications recorded or re-triggered, by origin",
			},
			[]string{"origin"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Delivery attempts handed to the sink, by result",
			},
			[]string{"result"},
		),
		deliveryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_duration_seconds",
				Help:      "Time spent in the delivery sink per attempt",
				Buckets:   prometheus.DefBuckets,
			},
		),
		droppedDelivery: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_dropped_total",
				Help:      "Delivery requests dropped because the dispatch queue was full",
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "delivery_queue_depth",
				Help:      "Pending delivery requests",
			},
		),
		ingestedRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_transactions_total",
				Help:      "Transactions stored by completed ingestions",
			},
		),
		ingestedFlagged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_flagged_transactions_total",
				Help:      "Flagged transactions stored by completed ingestions",
			},
		),
		ingestedStatements: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_statements_total",
				Help:      "Statements whose ingestion completed",
			},
		),
	}
}

// Register registers all collectors with reg.
func (p *Prometheus) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		p.transitions, p.notifications, p.deliveries, p.deliveryLatency,
		p.droppedDelivery, p.queueDepth, p.ingestedRows, p.ingestedFlagged,
		p.ingestedStatements,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prometheus) RecordTransition(action string, changed bool) {
	p.transitions.WithLabelValues(action, strconv.FormatBool(changed)).Inc()
}

func (p *Prometheus) RecordNotification(origin string) {
	p.notifications.WithLabelValues(origin).Inc()
}

func (p *Prometheus) RecordDelivery(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	p.deliveries.WithLabelValues(result).Inc()
	p.deliveryLatency.Observe(duration.Seconds())
}

func (p *Prometheus) RecordDeliveryDropped() {
	p.droppedDelivery.Inc()
}

func (p *Prometheus) RecordQueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}

func (p *Prometheus) RecordIngestion(transactions, flagged int) {
	p.ingestedStatements.Inc()
	p.ingestedRows.Add(float64(transactions))
	p.ingestedFlagged.Add(float64(flagged))
}
