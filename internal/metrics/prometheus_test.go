package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	p := NewPrometheus("test")
	reg := prometheus.NewRegistry()
	if err := p.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	p.RecordTransition("approve", true)
	p.RecordTransition("approve", false)
	p.RecordTransition("approve", false)
	if got := testutil.ToFloat64(p.transitions.WithLabelValues("approve", "false")); got != 2 {
		t.Errorf("expected 2 unchanged approvals, got %v", got)
	}

	p.RecordNotification(OriginEscalation)
	if got := testutil.ToFloat64(p.notifications.WithLabelValues(OriginEscalation)); got != 1 {
		t.Errorf("expected 1 escalation notification, got %v", got)
	}

	p.RecordDelivery(false, 5*time.Millisecond)
	if got := testutil.ToFloat64(p.deliveries.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failed delivery, got %v", got)
	}

	p.RecordDeliveryDropped()
	p.RecordQueueDepth(7)
	if got := testutil.ToFloat64(p.queueDepth); got != 7 {
		t.Errorf("expected queue depth 7, got %v", got)
	}

	p.RecordIngestion(35, 2)
	if got := testutil.ToFloat64(p.ingestedRows); got != 35 {
		t.Errorf("expected 35 ingested rows, got %v", got)
	}
	if got := testutil.ToFloat64(p.ingestedFlagged); got != 2 {
		t.Errorf("expected 2 flagged rows, got %v", got)
	}
}

func TestPrometheusRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := NewPrometheus("dup").Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := NewPrometheus("dup").Register(reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}
