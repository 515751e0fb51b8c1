package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

var (
	errAPIKeyRequired    = errors.New("sendgrid api key is required")
	errRecipientRequired = errors.New("recipient email is required")
)

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Message is a single transactional email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Client sends transactional email through the SendGrid v3 API.
type Client struct {
	api      sender
	fromName string
	fromAddr string
}

// NewClient builds a mailer from the configured API key and sender.
func NewClient(ctx context.Context, cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	if logg != nil {
		logg.Info(ctx, "sendgrid client initialized")
	}
	return &Client{
		api:      sg.NewSendClient(key),
		fromName: cfg.FromName,
		fromAddr: cfg.DefaultFrom,
	}, nil
}

// Send delivers the message; any non-2xx response is an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.api == nil {
		return errors.New("sendgrid client not initialized")
	}
	if strings.TrimSpace(msg.ToEmail) == "" {
		return errRecipientRequired
	}

	from := mail.NewEmail(c.fromName, c.fromAddr)
	to := mail.NewEmail(msg.ToName, strings.TrimSpace(msg.ToEmail))
	payload := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := c.api.SendWithContext(ctx, payload)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp == nil {
		return errors.New("send email: empty response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send email: sendgrid returned %d: %s", resp.StatusCode, truncate(resp.Body, 256))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
