package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"

	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/stripe"
)

type intentLookup interface {
	LookupPaymentIntent(ctx context.Context, intentID string) (*stripe.IntentSummary, error)
}

// OnlineConfirmed settles orders the browser reports as paid. When a verifier
// is configured the transaction is checked against the processor; without one
// the client report is trusted and a warning is logged.
type OnlineConfirmed struct {
	orders   orderFinalizer
	verifier intentLookup
	currency currency.Unit
	logg     *logger.Logger
}

// NewOnlineConfirmed builds the client-confirmed adapter. verifier may be nil.
func NewOnlineConfirmed(finalizer orderFinalizer, verifier intentLookup, unit currency.Unit, logg *logger.Logger) (*OnlineConfirmed, error) {
	if finalizer == nil {
		return nil, fmt.Errorf("order finalizer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OnlineConfirmed{orders: finalizer, verifier: verifier, currency: unit, logg: logg}, nil
}

func (o *OnlineConfirmed) Method() enums.PaymentMethod {
	return enums.PaymentMethodOnline
}

func (o *OnlineConfirmed) Finalize(ctx context.Context, req Request) (*orders.FinalizeResult, error) {
	transactionID := strings.TrimSpace(req.TransactionID)
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction_id is required")
	}
	status, err := enums.ParsePaymentStatus(req.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
	}
	if status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment not completed").
			WithDetails(map[string]any{"status": string(status)})
	}

	order, err := o.orders.Pending(ctx, req.UserID, req.OrderNumber)
	if err != nil {
		return nil, err
	}

	logCtx := o.logg.WithFields(o.logg.WithOrderNumber(ctx, order.OrderNumber), map[string]any{
		"transaction_id": transactionID,
	})
	if o.verifier == nil {
		o.logg.Warn(logCtx, "online payment accepted without processor verification")
	} else {
		intent, err := o.verifier.LookupPaymentIntent(ctx, transactionID)
		switch {
		case errors.Is(err, stripe.ErrIntentNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "unknown transaction")
		case err != nil:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify online payment")
		}
		expected := MinorUnits(order.OrderTotal, o.currency)
		if !intent.Succeeded || intent.Amount != expected ||
			(intent.Currency != "" && !strings.EqualFold(intent.Currency, o.currency.String())) {
			o.logg.Warn(o.logg.WithFields(logCtx, map[string]any{
				"intent_status":   intent.Status,
				"intent_amount":   intent.Amount,
				"expected_amount": expected,
			}), "online payment failed processor verification")
			return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment verification failed")
		}
	}

	return o.orders.Finalize(ctx, orders.FinalizeRequest{
		UserID:      req.UserID,
		OrderNumber: order.OrderNumber,
		PaymentID:   transactionID,
		Method:      enums.PaymentMethodOnline,
		Status:      enums.PaymentStatusCompleted,
	})
}
