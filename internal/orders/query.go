package orders

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/pagination"
)

//go:embed templates/invoice.html.tmpl
var invoiceTemplateSource string

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(invoiceTemplateSource))

// Invoice is a rendered invoice document ready to be served as an attachment.
type Invoice struct {
	Filename    string
	ContentType string
	Body        []byte
}

// QueryService exposes read-only projections over paid orders.
type QueryService interface {
	Complete(ctx context.Context, userID uuid.UUID, orderNumber, paymentID string) (*Receipt, error)
	Detail(ctx context.Context, userID uuid.UUID, orderNumber string) (*Receipt, error)
	Invoice(ctx context.Context, userID uuid.UUID, orderNumber, paymentID string) (*Invoice, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
}

type queryService struct {
	repo     Repository
	currency string
}

// NewQueryService builds the order lookup service.
func NewQueryService(repo Repository, currency string) (QueryService, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if strings.TrimSpace(currency) == "" {
		return nil, fmt.Errorf("currency required")
	}
	return &queryService{repo: repo, currency: strings.ToUpper(currency)}, nil
}

func (s *queryService) Complete(ctx context.Context, userID uuid.UUID, orderNumber, paymentID string) (*Receipt, error) {
	order, err := s.settledOrder(ctx, userID, orderNumber, paymentID)
	if err != nil {
		return nil, err
	}
	return s.receipt(ctx, *order)
}

// settledOrder loads a paid order only when paymentID is the payment that settled it.
func (s *queryService) settledOrder(ctx context.Context, userID uuid.UUID, orderNumber, paymentID string) (*models.Order, error) {
	order, err := s.paidOrder(ctx, userID, orderNumber)
	if err != nil {
		return nil, err
	}
	paymentID = strings.TrimSpace(paymentID)
	if order == nil || order.Payment == nil || paymentID == "" || order.Payment.PaymentID != paymentID {
		return nil, orderNotFound()
	}
	return order, nil
}

func (s *queryService) Detail(ctx context.Context, userID uuid.UUID, orderNumber string) (*Receipt, error) {
	order, err := s.paidOrder(ctx, userID, orderNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderNotFound()
	}
	return s.receipt(ctx, *order)
}

func (s *queryService) Invoice(ctx context.Context, userID uuid.UUID, orderNumber, paymentID string) (*Invoice, error) {
	order, err := s.settledOrder(ctx, userID, orderNumber, paymentID)
	if err != nil {
		return nil, err
	}
	receipt, err := s.receipt(ctx, *order)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, invoiceData{Receipt: *receipt, Currency: s.currency}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice")
	}
	return &Invoice{
		Filename:    fmt.Sprintf("invoice_%s.html", order.OrderNumber),
		ContentType: "text/html; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}

func (s *queryService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := params.After(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	orders, next, err := s.repo.ListPaidOrders(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &OrderList{
		Orders: lo.Map(orders, func(order models.Order, _ int) OrderSummary { return summarize(order) }),
	}
	if next != nil {
		list.NextCursor = next.Encode()
	}
	return list, nil
}

func (s *queryService) paidOrder(ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, nil
	}
	order, err := s.repo.FindPaidOrder(ctx, userID, orderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *queryService) receipt(ctx context.Context, order models.Order) (*Receipt, error) {
	lines, err := s.repo.FindOrderLines(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	receipt := buildReceipt(order, lines)
	return &receipt, nil
}

type invoiceData struct {
	Receipt
	Currency string
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{"redirect": "/"})
}
