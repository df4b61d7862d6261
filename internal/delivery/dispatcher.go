package delivery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fraudreview/internal/logger"
	"fraudreview/internal/metrics"
	"fraudreview/internal/models"
)

// Config configures the dispatcher worker pool.
type Config struct {
	// Workers is the number of concurrent delivery workers (default: 2)
	Workers int

	// QueueSize bounds pending deliveries (default: 256)
	QueueSize int

	// Timeout limits a single Deliver call (default: 10s)
	Timeout time.Duration
}

// DeliveredFunc is called after the sink accepted a notification.
type DeliveredFunc func(ctx context.Context, notificationID string) error

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Queued    int64
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Dispatcher delivers notifications asynchronously through a bounded queue.
// Dispatch never blocks; when the queue is full the request is dropped and
// counted, and the notification stays in its recorded state.
type Dispatcher struct {
	sink        Sink
	queue       chan models.Notification
	config      Config
	metrics     metrics.Recorder
	onDelivered DeliveredFunc

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher creates a dispatcher. Call Start to launch workers.
func NewDispatcher(sink Sink, config Config, recorder metrics.Recorder) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Dispatcher{
		sink:    sink,
		queue:   make(chan models.Notification, config.QueueSize),
		config:  config,
		metrics: recorder,
	}
}

// OnDelivered registers the callback invoked after a successful delivery.
// It must be set before Start.
func (d *Dispatcher) OnDelivered(fn DeliveredFunc) {
	d.onDelivered = fn
}

// Start launches the worker pool. Calling Start more than once is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Dispatch enqueues n for delivery and reports whether it was accepted.
func (d *Dispatcher) Dispatch(n models.Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- n:
		d.queued.Add(1)
		d.metrics.RecordQueueDepth(len(d.queue))
		return true
	default:
		d.dropped.Add(1)
		d.metrics.RecordDeliveryDropped()
		logger.Named("delivery").Warnw("delivery queue full, dropping notification",
			"notification_id", n.ID,
			"transaction_id", n.TransactionID,
		)
		return false
	}
}

// Close stops accepting work and waits for queued deliveries to finish or
// for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:    d.queued.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.metrics.RecordQueueDepth(len(d.queue))
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n models.Notification) {
	log := logger.Named("delivery")

	ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
	defer cancel()

	start := time.Now()
	err := d.sink.Deliver(ctx, n)
	d.metrics.RecordDelivery(err == nil, time.Since(start))

	if err != nil {
		d.failed.Add(1)
		log.Warnw("notification delivery failed",
			"notification_id", n.ID,
			"transaction_id", n.TransactionID,
			"error", err,
		)
		return
	}
	d.delivered.Add(1)

	if d.onDelivered != nil {
		if err := d.onDelivered(ctx, n.ID); err != nil {
			log.Errorw("failed to record delivery outcome",
				"notification_id", n.ID,
				"error", err,
			)
		}
	}
}
