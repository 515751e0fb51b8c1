package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/internal/cart"
	dbpkg "github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/metrics"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notifier is told about every committed order. Failures never undo the order.
type Notifier interface {
	OrderPlaced(ctx context.Context, result *FinalizeResult) error
}

// FinalizeRequest carries the settled payment for an unpaid order.
type FinalizeRequest struct {
	UserID      uuid.UUID
	OrderNumber string
	PaymentID   string
	Method      enums.PaymentMethod
	Status      enums.PaymentStatus
	// Verify runs inside the transaction before anything is written.
	Verify func(order *models.Order) error
}

// FinalizeResult is the committed order with its payment and lines.
type FinalizeResult struct {
	Order   models.Order       `json:"order"`
	Payment models.Payment     `json:"payment"`
	Lines   []models.OrderLine `json:"lines"`
}

// Finalizer turns an unpaid order and the owner's cart into a paid order.
type Finalizer struct {
	repo     Repository
	carts    cart.LineRepository
	tx       txRunner
	stock    StockLedger
	outbox   outboxPublisher
	notifier Notifier
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// FinalizerParams wires the finalizer.
type FinalizerParams struct {
	Repo     Repository
	Carts    cart.LineRepository
	Tx       txRunner
	Stock    StockLedger
	Outbox   outboxPublisher
	Notifier Notifier
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

// NewFinalizer validates the dependencies and builds a Finalizer.
func NewFinalizer(params FinalizerParams) (*Finalizer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	stock := params.Stock
	if stock == nil {
		stock = NewStockLedger()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Finalizer{
		repo:     params.Repo,
		carts:    params.Carts,
		tx:       params.Tx,
		stock:    stock,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Pending loads the caller's unpaid order outside any transaction.
func (f *Finalizer) Pending(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_number is required")
	}
	order, err := f.repo.FindUnpaidOrder(ctx, userID, orderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// Finalize settles an unpaid order from the owner's cart in one transaction.
// The notifier runs after commit and its errors are only logged.
func (f *Finalizer) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	result, err := f.finalize(ctx, req)
	if err != nil {
		code := pkgerrors.CodeInternal
		if typed := pkgerrors.As(err); typed != nil {
			code = typed.Code()
		}
		f.metrics.IncFinalizeFailure(string(req.Method), string(code))
		return nil, err
	}

	f.metrics.IncFinalized(string(req.Method))
	logCtx := f.logg.WithFields(f.logg.WithOrderNumber(ctx, result.Order.OrderNumber), map[string]any{
		"payment_id":     result.Payment.PaymentID,
		"payment_method": string(result.Payment.Method),
		"line_count":     len(result.Lines),
	})
	f.logg.Info(logCtx, "order finalized")

	if f.notifier != nil {
		if err := f.notifier.OrderPlaced(ctx, result); err != nil {
			f.metrics.IncNotificationFailure()
			f.logg.Error(logCtx, "order notification failed", err)
		}
	}
	return result, nil
}

func (f *Finalizer) finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result *FinalizeResult
	err := f.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := f.repo.WithTx(tx)
		carts := f.carts.WithTx(tx)
		owner := cart.ForUser(req.UserID)

		order, err := repo.FindUnpaidOrder(ctx, req.UserID, req.OrderNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if req.Verify != nil {
			if err := req.Verify(order); err != nil {
				return err
			}
		}

		lines, err := carts.ListLines(ctx, owner)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").
				WithDetails(map[string]any{"redirect": "/api/v1/products"})
		}
		if current := cart.ComputeTotals(lines, decimal.Zero).Subtotal; !current.Equal(order.Subtotal) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart changed since the order was placed").
				WithDetails(map[string]any{"order_subtotal": order.Subtotal.StringFixed(2), "cart_subtotal": current.StringFixed(2)})
		}

		payment := models.Payment{
			PaymentID:  req.PaymentID,
			UserID:     req.UserID,
			Method:     req.Method,
			AmountPaid: order.OrderTotal,
			Status:     req.Status,
		}
		if err := repo.CreatePayment(ctx, &payment); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_payments_payment_id") || dbpkg.IsUniqueViolation(err, "payments.payment_id") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		marked, err := repo.MarkOrderPaid(ctx, order.ID, payment.ID, string(req.Method))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !marked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already finalized")
		}

		orderLines := lo.Map(lines, func(line models.CartLine, _ int) models.OrderLine {
			return snapshotLine(order, payment, line)
		})
		if err := repo.CreateOrderLines(ctx, orderLines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order lines")
		}
		for _, line := range lines {
			if err := f.stock.Decrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		if _, err := carts.DeleteByOwner(ctx, owner); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		order.IsOrdered = true
		order.PaymentID = &payment.ID
		order.PaymentMethod = req.Method
		order.Payment = &payment

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: req.UserID, Source: string(req.Method)},
			OccurredAt:    f.now().UTC(),
			Data:          placedEvent(order, payment, orderLines, f.now().UTC()),
		}
		if err := f.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order placed")
		}

		result = &FinalizeResult{Order: *order, Payment: payment, Lines: orderLines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func validateRequest(req FinalizeRequest) error {
	if req.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(req.OrderNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order_number is required")
	}
	if strings.TrimSpace(req.PaymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment_id is required")
	}
	if !req.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	if !req.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment status")
	}
	return nil
}

func snapshotLine(order *models.Order, payment models.Payment, line models.CartLine) models.OrderLine {
	snapshot := models.OrderLine{
		OrderID:          order.ID,
		PaymentID:        payment.ID,
		UserID:           order.UserID,
		ProductID:        line.ProductID,
		Quantity:         line.Quantity,
		ColorVariationID: line.ColorVariationID,
		SizeVariationID:  line.SizeVariationID,
		Ordered:          true,
	}
	if line.Product != nil {
		snapshot.ProductName = line.Product.Name
		snapshot.UnitPrice = line.Product.Price
	}
	if line.ColorVariation != nil {
		value := line.ColorVariation.Value
		snapshot.ColorValue = &value
	}
	if line.SizeVariation != nil {
		value := line.SizeVariation.Value
		snapshot.SizeValue = &value
	}
	return snapshot
}

func placedEvent(order *models.Order, payment models.Payment, lines []models.OrderLine, at time.Time) payloads.OrderPlacedEvent {
	return payloads.OrderPlacedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		PaymentID:     payment.PaymentID,
		PaymentMethod: payment.Method,
		PaymentStatus: payment.Status,
		OrderTotal:    order.OrderTotal,
		Lines: lo.Map(lines, func(line models.OrderLine, _ int) payloads.OrderPlacedLine {
			return payloads.OrderPlacedLine{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice}
		}),
		PlacedAt: at,
	}
}
