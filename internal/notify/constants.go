package notify

import "time"

// AppName is the application name used in notifications.
const AppName = "HearingAI"

// Notification channel names, used for logging and metrics.
const (
	ChannelWebhook = "webhook"
	ChannelEmail   = "email"
	ChannelMQTT    = "mqtt"
)

// timestampUTC formats t in UTC as RFC3339.
func timestampUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
