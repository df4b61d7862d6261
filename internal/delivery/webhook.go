package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"fraudreview/internal/logger"
	"fraudreview/internal/models"
)

// ErrCircuitOpen is returned while the webhook circuit breaker is open.
var ErrCircuitOpen = errors.New("delivery webhook circuit open")

// deliveryRequest is the JSON body posted to the delivery collaborator.
type deliveryRequest struct {
	NotificationID string `json:"notification_id"`
	TransactionID  string `json:"transaction_id"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	Merchant       string `json:"merchant"`
	Amount         string `json:"amount"`
	Date           string `json:"date"` // RFC3339
	Attempt        int    `json:"attempt"`
}

// WebhookSink posts notifications to an external delivery service.
type WebhookSink struct {
	url        string
	apiKey     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

// NewWebhookSink creates a sink posting to url. Five consecutive failures
// open the breaker for 30 seconds.
func NewWebhookSink(url, apiKey string, httpClient *http.Client) *WebhookSink {
	log := logger.Named("delivery")
	settings := gobreaker.Settings{
		Name:        "delivery-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &WebhookSink{
		url:        strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		cb:         gobreaker.NewCircuitBreaker(settings),
	}
}

// Deliver posts n to the webhook through the circuit breaker.
func (s *WebhookSink) Deliver(ctx context.Context, n models.Notification) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, n)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

func (s *WebhookSink) post(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(deliveryRequest{
		NotificationID: n.ID,
		TransactionID:  n.TransactionID,
		Type:           string(n.Type),
		Status:         string(n.Status),
		Merchant:       n.Merchant,
		Amount:         n.Amount.StringFixed(2),
		Date:           n.Date.UTC().Format(time.RFC3339),
		Attempt:        n.Attempts,
	})
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivering notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivering notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}
