package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

var (
	errCredentialsRequired = errors.New("gateway key id and secret are required")
	errInvalidAmount       = errors.New("intent amount must be positive")
)

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Intent is the remote order created for the signed gateway checkout.
type Intent struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// CreateIntentRequest describes the payment intent to open. Amount is in minor units.
type CreateIntentRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Client wraps the Razorpay orders API.
type Client struct {
	orders orderAPI
	keyID  string
}

// NewClient builds a gateway client from the configured credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errCredentialsRequired
	}
	api := rzp.NewClient(strings.TrimSpace(cfg.KeyID), strings.TrimSpace(cfg.KeySecret))
	if logg != nil {
		logg.Info(ctx, "signed gateway client initialized")
	}
	return &Client{orders: api.Order, keyID: strings.TrimSpace(cfg.KeyID)}, nil
}

// KeyID is the public key handed to the browser checkout widget.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateIntent opens a remote order for the amount and returns its id.
func (c *Client) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	if c == nil || c.orders == nil {
		return nil, errors.New("gateway client not initialized")
	}
	if req.Amount <= 0 {
		return nil, errInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        strings.ToUpper(strings.TrimSpace(req.Currency)),
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	body, err := c.orders.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, errors.New("gateway order response missing id")
	}

	intent := &Intent{
		ID:       id,
		Amount:   req.Amount,
		Currency: data["currency"].(string),
		Receipt:  req.Receipt,
	}
	if amount, ok := numberField(body["amount"]); ok {
		intent.Amount = amount
	}
	if currency, ok := body["currency"].(string); ok && currency != "" {
		intent.Currency = currency
	}
	if status, ok := body["status"].(string); ok {
		intent.Status = status
	}
	return intent, nil
}

// numberField converts the JSON-decoded number types the SDK returns.
func numberField(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
