// Package webhook handles asynchronous notifications to registered webhook
// URLs when a transaction's fraud score clears an endpoint's threshold.
//
// Notifications are sent in a goroutine so they never block the HTTP
// response. Failed deliveries are logged but not retried (a production
// system would use a persistent queue with exponential backoff).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"okapi/banksim-api/internal/anomaly"
	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/store"
)

// Payload is the body delivered to a registered endpoint.
type Payload struct {
	Event       string             `json:"event"`
	TriggeredAt time.Time          `json:"triggered_at"`
	Transaction domain.Transaction `json:"transaction"`
	Verdict     anomaly.Verdict    `json:"verdict"`
}

// Notifier sends fraud alerts to all registered, active endpoints.
type Notifier struct {
	store  *store.Store
	client *http.Client
}

// New creates a Notifier with a sensible default HTTP client timeout.
func New(s *store.Store) *Notifier {
	return &Notifier{
		store: s,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// NotifyAsync fires webhook calls in the background for the given scored
// transaction. Every active webhook whose threshold the fraud score meets
// gets a delivery.
func (n *Notifier) NotifyAsync(tx domain.Transaction, verdict anomaly.Verdict) {
	for _, wh := range n.store.ListActiveWebhooks() {
		if verdict.FraudScore >= wh.Threshold {
			go n.send(wh, tx, verdict)
		}
	}
}

// send delivers a single webhook call and logs the outcome.
func (n *Notifier) send(wh *domain.WebhookConfig, tx domain.Transaction, verdict anomaly.Verdict) {
	payload := Payload{
		Event:       "fraud_alert",
		TriggeredAt: time.Now().UTC(),
		Transaction: tx,
		Verdict:     verdict,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("webhook: failed to marshal payload", "webhook_id", wh.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook: failed to build request", "webhook_id", wh.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Banksim-Event", "fraud_alert")

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Warn("webhook: delivery failed", "webhook_id", wh.ID, "url", wh.URL, "error", err)
		return
	}
	defer resp.Body.Close()

	slog.Info("webhook: delivered",
		"webhook_id", wh.ID,
		"url", wh.URL,
		"status", resp.StatusCode,
		"reference", tx.Reference,
		"fraud_score", verdict.FraudScore,
	)
}
