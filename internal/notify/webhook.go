package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/util"
)

// webhookTimeout bounds a single webhook delivery.
const webhookTimeout = 10000 * time.Millisecond

var webhookClient = &http.Client{Timeout: webhookTimeout}

// WebhookPayload represents the data sent to webhook endpoints.
type WebhookPayload struct {
	Event       string        `json:"event"`
	DetectionID string        `json:"detection_id,omitempty"`
	Kind        string        `json:"kind,omitempty"`
	Name        string        `json:"name,omitempty"`
	Channel     audio.Channel `json:"channel,omitempty"`
	Confidence  float64       `json:"confidence,omitempty"`
	FrequencyHz float64       `json:"frequency_hz,omitempty"`
	Intensity   float64       `json:"intensity,omitempty"`
	Message     string        `json:"message,omitempty"`
	Timestamp   string        `json:"timestamp"`
}

// SendDetectionWebhook posts a classified sound event to the webhook.
func SendDetectionWebhook(ctx context.Context, webhookURL string, d *audio.Detection) error {
	return sendWebhook(ctx, webhookURL, &WebhookPayload{
		Event:       "sound_detected",
		DetectionID: d.ID,
		Kind:        d.Kind.String(),
		Name:        d.Name,
		Channel:     d.Channel,
		Confidence:  d.Confidence,
		FrequencyHz: d.Frequency,
		Intensity:   d.Intensity,
		Message:     fmt.Sprintf("%s on the %s channel", d.Name, d.Channel),
		Timestamp:   timestampUTC(d.Timestamp),
	})
}

// SendTestWebhook sends a test webhook notification.
func SendTestWebhook(ctx context.Context, webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(ctx, webhookURL, &WebhookPayload{
		Event:     "test",
		Message:   "This is a test notification from " + AppName,
		Timestamp: timestampUTC(time.Now()),
	})
}

// sendWebhook delivers a notification to the configured webhook endpoint.
func sendWebhook(ctx context.Context, webhookURL string, payload *WebhookPayload) error {
	if !util.IsConfigured(webhookURL) {
		return nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return util.WrapError("create webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := webhookClient.Do(req)
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Response body is not read

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
