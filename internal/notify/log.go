package notify

import (
	"context"

	"github.com/foodway/foodway-backend/pkg/logger"
)

// LogChannel writes messages to the structured log. Used in dev so codes are visible without mail.
type LogChannel struct {
	logg *logger.Logger
}

func NewLogChannel(logg *logger.Logger) *LogChannel {
	return &LogChannel{logg: logg}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Accepts(Recipient) bool { return true }

func (c *LogChannel) Send(ctx context.Context, to Recipient, subject, body string) error {
	ctx = c.logg.WithFields(ctx, map[string]any{
		"recipient_email": to.Email,
		"recipient_chat":  to.ChatID,
		"subject":         subject,
		"body":            body,
	})
	c.logg.Info(ctx, "notify.logged")
	return nil
}
