package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/types"
	"github.com/oszuidwest/hearingai/internal/util"
)

// GraphConfig is the configuration for email notifications.
type GraphConfig = types.GraphConfig

// detectionEmail renders the subject and body of a detection alert.
func detectionEmail(d *audio.Detection) (subject, body string) {
	subject = fmt.Sprintf("[ALERT] %s detected - %s", d.Name, AppName)
	body = fmt.Sprintf(
		"A sound event was detected.\n\n"+
			"Event:      %s\n"+
			"Channel:    %s\n"+
			"Confidence: %.0f%%\n"+
			"Frequency:  %.0f Hz\n"+
			"Intensity:  %.3f\n"+
			"Time:       %s\n"+
			"ID:         %s",
		d.Name, d.Channel, d.Confidence*100, d.Frequency, d.Intensity, util.HumanTime(d.Timestamp), d.ID,
	)
	return subject, body
}

// sendWithClient delivers subject and body to every configured recipient.
func sendWithClient(ctx context.Context, client *GraphClient, cfg *GraphConfig, subject, body string) error {
	recipients := ParseRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients")
	}
	if err := client.SendMail(ctx, recipients, subject, body); err != nil {
		return util.WrapError("send email via Graph", err)
	}
	return nil
}

// SendTestEmail sends a test email to verify email configuration.
func SendTestEmail(ctx context.Context, cfg *GraphConfig) error {
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return fmt.Errorf("create Graph client: %w", err)
	}

	if err := client.ValidateAuth(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	subject := "[TEST] " + AppName
	body := fmt.Sprintf(
		"Test email from %s.\n\n"+
			"Time: %s\n\n"+
			"Microsoft Graph configuration is working correctly.",
		AppName, util.HumanTime(time.Now()),
	)
	return sendWithClient(ctx, client, cfg, subject, body)
}
