package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goldensig/goldensig/server/internal/config"
	"github.com/goldensig/goldensig/server/internal/session"
)

// Event is the payload sent to generic HTTP targets.
type Event struct {
	Type     string           `json:"type"`
	Approval session.Approval `json:"approval"`
}

// EventApproved is the Event.Type of a golden approval.
const EventApproved = "golden.approved"

// Notifier posts approval events to the configured webhooks.
// Notifier is safe for concurrent use.
type Notifier struct {
	webhooks []config.WebhookConfig
	client   *http.Client
	wg       sync.WaitGroup
}

// New creates a Notifier. A Notifier with no webhooks is valid; Approved
// becomes a no-op.
func New(webhooks []config.WebhookConfig) *Notifier {
	return &Notifier{
		webhooks: webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Approved delivers a in the background. It matches session.Hook.
// Delivery does not use the caller's context, which usually ends with the
// HTTP request that triggered the approval.
func (n *Notifier) Approved(_ context.Context, a session.Approval) {
	if len(n.webhooks) == 0 {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n.Deliver(ctx, a)
	}()
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() { n.wg.Wait() }

// Deliver sends a to all configured targets synchronously.
// Errors are logged but do not affect the caller.
func (n *Notifier) Deliver(ctx context.Context, a session.Approval) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(ctx, url, a)
		case "teams":
			err = n.sendTeams(ctx, url, a)
		case "http":
			err = n.sendHTTP(ctx, url, a)
		default:
			slog.Warn("notify: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed",
				"type", wh.Type,
				"session", a.SessionID,
				"batch", a.BatchID,
				"err", err,
			)
		} else {
			slog.Debug("notify: webhook delivered",
				"type", wh.Type,
				"session", a.SessionID,
				"batch", a.BatchID,
			)
		}
	}
}

// Summary is the one-line human text used by chat targets.
func Summary(a session.Approval) string {
	return fmt.Sprintf("Golden Signature updated: batch %s replaces %s (energy %+.2f kWh, yield %+.2f). Estimated savings: %.2f kWh, %.2f kg CO2, %.2f cost units.",
		a.BatchID, a.PreviousID, a.EnergyDiff, a.YieldDiff,
		a.Impact.EnergySavedKWh, a.Impact.CarbonSavedKg, a.Impact.CostSaved)
}

func (n *Notifier) sendSlack(ctx context.Context, url string, a session.Approval) error {
	body, _ := json.Marshal(map[string]string{
		"text": "*[APPROVED]* " + Summary(a),
	})
	return n.post(ctx, url, body)
}

func (n *Notifier) sendTeams(ctx context.Context, url string, a session.Approval) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "2EB67D",
		"summary":    "Golden Signature approved",
		"title":      fmt.Sprintf("Golden Signature approved: %s", a.BatchID),
		"text":       Summary(a),
	}
	body, _ := json.Marshal(payload)
	return n.post(ctx, url, body)
}

func (n *Notifier) sendHTTP(ctx context.Context, url string, a session.Approval) error {
	body, _ := json.Marshal(Event{Type: EventApproved, Approval: a})
	return n.post(ctx, url, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
