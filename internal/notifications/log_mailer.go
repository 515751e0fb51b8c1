package notifications

import (
	"context"

	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/sendgrid"
)

// LogMailer stands in for SendGrid when no API key is configured.
type LogMailer struct {
	Logger *logger.Logger
}

func (m LogMailer) Send(ctx context.Context, msg sendgrid.Message) error {
	if m.Logger == nil {
		return nil
	}
	ctx = m.Logger.WithFields(ctx, map[string]any{
		"to":      msg.ToEmail,
		"subject": msg.Subject,
	})
	m.Logger.Info(ctx, "email delivery disabled, message logged")
	return nil
}
