package util

import (
	"log/slog"

	"github.com/oszuidwest/hearingai/internal/metrics"
)

// LogNotifyResult executes a notification function, logs the result and
// records it under the notification channel name.
func LogNotifyResult(fn func() error, notifyType string) {
	err := fn()
	metrics.RecordNotification(notifyType, err)
	if err != nil {
		slog.Error("notification failed", "type", notifyType, "error", err)
	} else {
		slog.Info("notification sent", "type", notifyType)
	}
}
