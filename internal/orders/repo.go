package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindUnpaidOrder(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	return r.findOrder(ctx, userID, orderNumber, false)
}

func (r *repository) FindPaidOrder(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	return r.findOrder(ctx, userID, orderNumber, true)
}

func (r *repository) findOrder(ctx context.Context, userID uuid.UUID, orderNumber string, paid bool) (*models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND order_number = ? AND is_ordered = ?", userID, orderNumber, paid)
	if paid {
		query = query.Preload("Payment")
	}
	var order models.Order
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// MarkOrderPaid flips is_ordered only while the order is still unpaid, so a
// second finalize of the same order affects zero rows.
func (r *repository) MarkOrderPaid(ctx context.Context, orderID, paymentID uuid.UUID, method string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_ordered = ?", orderID, false).
		Updates(map[string]any{
			"is_ordered":     true,
			"payment_id":     paymentID,
			"payment_method": method,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) SetGatewayIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_ordered = ?", orderID, false).
		Update("gateway_intent_id", intentID).Error
}

func (r *repository) ListPaidOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Cursor, error) {
	cursor, err := params.After()
	if err != nil {
		return nil, nil, err
	}
	query := r.db.WithContext(ctx).
		Preload("Payment").
		Where("user_id = ? AND is_ordered = ?", userID, true)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(params.FetchLimit()).Find(&orders).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(orders, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

func (r *repository) FindInconsistentOrders(ctx context.Context, limit int) ([]InconsistentOrder, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []InconsistentOrder
	err := r.db.WithContext(ctx).Raw(`
		SELECT o.id, o.order_number, o.user_id,
			CASE WHEN p.id IS NULL THEN 1 ELSE 0 END AS missing_payment,
			COUNT(l.id) AS line_count
		FROM orders o
		LEFT JOIN payments p ON p.id = o.payment_id
		LEFT JOIN order_lines l ON l.order_id = o.id
		WHERE o.is_ordered = ?
		GROUP BY o.id, o.order_number, o.user_id, p.id
		HAVING p.id IS NULL OR COUNT(l.id) = 0
		ORDER BY o.order_number
		LIMIT ?
	`, true, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindExpiredDrafts(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 500
	}
	var drafts []models.Order
	err := r.db.WithContext(ctx).
		Where("is_ordered = ? AND created_at < ?", false, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

// DeleteDraft removes an order that is still unpaid. It reports false when the
// order was paid or deleted concurrently.
func (r *repository) DeleteDraft(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND is_ordered = ?", orderID, false).
		Delete(&models.Order{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
