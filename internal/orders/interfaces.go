package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, payments and order lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindUnpaidOrder(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	FindPaidOrder(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)
	FindOrderLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	MarkOrderPaid(ctx context.Context, orderID, paymentID uuid.UUID, method string) (bool, error)
	CreateOrderLines(ctx context.Context, lines []models.OrderLine) error
	SetGatewayIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	ListPaidOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	FindInconsistentOrders(ctx context.Context, limit int) ([]InconsistentOrder, error)
	FindExpiredDrafts(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	DeleteDraft(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// StockLedger decrements product inventory inside a caller-owned transaction.
type StockLedger interface {
	Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// InconsistentOrder is a paid order missing its payment row or its lines.
type InconsistentOrder struct {
	ID             uuid.UUID
	OrderNumber    string
	UserID         uuid.UUID
	MissingPayment bool
	LineCount      int64
}
