package notifications

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/smartshop-backend/pkg/sendgrid"
)

const orderConfirmationConsumer = "order-confirmation-email"

//go:embed templates/order_received.html.tmpl
var orderReceivedHTML string

//go:embed templates/order_received.txt.tmpl
var orderReceivedText string

var templateFuncs = map[string]any{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

var (
	htmlTemplate = htmltemplate.Must(htmltemplate.New("order_received_html").Funcs(templateFuncs).Parse(orderReceivedHTML))
	textTemplate = texttemplate.Must(texttemplate.New("order_received_text").Funcs(templateFuncs).Parse(orderReceivedText))
)

type mailer interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

type dedupeGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Dispatcher emails the order confirmation to the billing address once per order.
type Dispatcher struct {
	mailer   mailer
	dedupe   dedupeGuard
	currency string
	logg     *logger.Logger
}

// NewDispatcher builds the confirmation dispatcher. dedupe may be nil.
func NewDispatcher(m mailer, dedupe dedupeGuard, currency string, logg *logger.Logger) (*Dispatcher, error) {
	if m == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		mailer:   m,
		dedupe:   dedupe,
		currency: strings.ToUpper(strings.TrimSpace(currency)),
		logg:     logg,
	}, nil
}

type emailData struct {
	Name        string
	OrderNumber string
	PaymentID   string
	Method      string
	Status      string
	Lines       []orders.LineView
	Tax         decimal.Decimal
	Total       decimal.Decimal
	Currency    string
}

// OrderPlaced renders and sends the confirmation email for a finalized order.
func (d *Dispatcher) OrderPlaced(ctx context.Context, result *orders.FinalizeResult) error {
	if result == nil {
		return fmt.Errorf("finalize result required")
	}
	order := result.Order
	logCtx := d.logg.WithOrderNumber(ctx, order.OrderNumber)

	if d.dedupe != nil {
		state, err := d.dedupe.Claim(ctx, orderConfirmationConsumer, order.ID)
		switch {
		case err != nil:
			d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "confirmation dedupe unavailable, sending anyway")
		case state != idempotency.Claimed:
			d.logg.Info(d.logg.WithField(logCtx, "dedupe_state", state.String()), "order confirmation already handled")
			return nil
		}
	}

	receipt := orders.ReceiptFor(result)
	data := emailData{
		Name:        order.FullName(),
		OrderNumber: order.OrderNumber,
		PaymentID:   result.Payment.PaymentID,
		Method:      result.Payment.Method.Label(),
		Status:      string(result.Payment.Status),
		Lines:       receipt.Lines,
		Tax:         order.Tax,
		Total:       order.OrderTotal,
		Currency:    d.currency,
	}

	var html, text bytes.Buffer
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return d.release(ctx, order.ID, fmt.Errorf("render html: %w", err))
	}
	if err := textTemplate.Execute(&text, data); err != nil {
		return d.release(ctx, order.ID, fmt.Errorf("render text: %w", err))
	}

	err := d.mailer.Send(ctx, sendgrid.Message{
		ToName:  data.Name,
		ToEmail: order.Email,
		Subject: "Thank you for your order!",
		Text:    text.String(),
		HTML:    html.String(),
	})
	if err != nil {
		return d.release(ctx, order.ID, err)
	}
	if d.dedupe != nil {
		if err := d.dedupe.Complete(ctx, orderConfirmationConsumer, order.ID); err != nil {
			d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "confirmation sent but dedupe mark not recorded")
		}
	}
	d.logg.Info(logCtx, "order confirmation sent")
	return nil
}

// release clears the dedupe mark so a later retry can send.
func (d *Dispatcher) release(ctx context.Context, orderID uuid.UUID, cause error) error {
	if d.dedupe != nil {
		_ = d.dedupe.Release(ctx, orderConfirmationConsumer, orderID)
	}
	return cause
}
