package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

type orderFinalizer interface {
	Pending(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	Finalize(ctx context.Context, req orders.FinalizeRequest) (*orders.FinalizeResult, error)
}

// Request is the union of what the adapters read from a payment submission.
type Request struct {
	UserID      uuid.UUID
	OrderNumber string

	// Online confirmed.
	TransactionID string
	Status        string

	// Signed gateway callback.
	IntentID  string
	PaymentID string
	Signature string
}

// Adapter settles an unpaid order through one payment method.
type Adapter interface {
	Method() enums.PaymentMethod
	Finalize(ctx context.Context, req Request) (*orders.FinalizeResult, error)
}

// Registry resolves adapters by payment method.
type Registry struct {
	adapters map[enums.PaymentMethod]Adapter
}

// NewRegistry indexes the adapters. Nil adapters are skipped so optional
// gateways can be left unconfigured.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	reg := &Registry{adapters: map[enums.PaymentMethod]Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		method := adapter.Method()
		if _, exists := reg.adapters[method]; exists {
			return nil, fmt.Errorf("duplicate payment adapter %q", method)
		}
		reg.adapters[method] = adapter
	}
	return reg, nil
}

// Resolve returns the adapter for method.
func (r *Registry) Resolve(method enums.PaymentMethod) (Adapter, error) {
	adapter, ok := r.adapters[method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment method %q is not available", method))
	}
	return adapter, nil
}
