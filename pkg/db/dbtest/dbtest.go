// Package dbtest opens in-memory SQLite databases migrated with every model
// and seeds catalog and cart fixtures for package tests.
package dbtest

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// Open returns an isolated in-memory database with the full schema.
func Open(t testing.TB, name string) *gorm.DB {
	t.Helper()
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to unwrap sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// ProductOption customizes a seeded product.
type ProductOption func(*models.Product)

// WithPrice sets the unit price.
func WithPrice(price string) ProductOption {
	return func(p *models.Product) {
		p.Price = decimal.RequireFromString(price)
	}
}

// WithStock sets the available stock.
func WithStock(stock int) ProductOption {
	return func(p *models.Product) {
		p.Stock = stock
	}
}

// Unavailable hides the product from the storefront.
func Unavailable() ProductOption {
	return func(p *models.Product) {
		p.IsAvailable = false
	}
}

// InCategory attaches the product to a category.
func InCategory(categoryID uuid.UUID) ProductOption {
	return func(p *models.Product) {
		p.CategoryID = &categoryID
	}
}

// SeedCategory inserts a category with the given slug.
func SeedCategory(t testing.TB, db *gorm.DB, slug string) models.Category {
	t.Helper()
	category := models.Category{Name: cases.Title(language.English).String(slug), Slug: slug}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return category
}

// SeedProduct inserts an available product priced 100.00 with 10 in stock
// unless overridden.
func SeedProduct(t testing.TB, db *gorm.DB, opts ...ProductOption) models.Product {
	t.Helper()
	name := gofakeit.ProductName()
	product := models.Product{
		Name:        name,
		Slug:        strings.ToLower(strings.ReplaceAll(name, " ", "-")) + "-" + uuid.NewString()[:8],
		Price:       decimal.RequireFromString("100.00"),
		Stock:       10,
		IsAvailable: true,
	}
	for _, opt := range opts {
		opt(&product)
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if !product.IsAvailable {
		if err := db.Model(&product).Update("is_available", false).Error; err != nil {
			t.Fatalf("seed product availability: %v", err)
		}
	}
	return product
}

// SeedVariation inserts an active variation for the product.
func SeedVariation(t testing.TB, db *gorm.DB, productID uuid.UUID, category enums.VariationCategory, value string) models.Variation {
	t.Helper()
	variation := models.Variation{
		ProductID: productID,
		Category:  category,
		Value:     value,
		IsActive:  true,
	}
	if err := db.Create(&variation).Error; err != nil {
		t.Fatalf("seed variation: %v", err)
	}
	return variation
}

// SeedUserCartLine inserts a cart line owned by the user.
func SeedUserCartLine(t testing.TB, db *gorm.DB, userID, productID uuid.UUID, quantity int) models.CartLine {
	t.Helper()
	line := models.CartLine{
		ProductID: productID,
		Quantity:  quantity,
		UserID:    &userID,
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}
	return line
}

// SeedSessionCartLine inserts a cart line owned by a guest session.
func SeedSessionCartLine(t testing.TB, db *gorm.DB, sessionID string, productID uuid.UUID, quantity int) models.CartLine {
	t.Helper()
	line := models.CartLine{
		ProductID: productID,
		Quantity:  quantity,
		SessionID: &sessionID,
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}
	return line
}

// BillingOrder returns an unpaid order with fake billing details for the user.
func BillingOrder(userID uuid.UUID, orderNumber string, subtotal, tax string) models.Order {
	sub := decimal.RequireFromString(subtotal)
	tx := decimal.RequireFromString(tax)
	return models.Order{
		UserID:        userID,
		OrderNumber:   orderNumber,
		FirstName:     gofakeit.FirstName(),
		LastName:      gofakeit.LastName(),
		Phone:         gofakeit.Phone(),
		Email:         gofakeit.Email(),
		AddressLine1:  gofakeit.Street(),
		Country:       gofakeit.Country(),
		State:         gofakeit.State(),
		City:          gofakeit.City(),
		Subtotal:      sub,
		Tax:           tx,
		OrderTotal:    sub.Add(tx),
		PaymentMethod: enums.PaymentMethodCOD,
	}
}

// SeedOrder inserts the order.
func SeedOrder(t testing.TB, db *gorm.DB, order models.Order) models.Order {
	t.Helper()
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

// SeedPurchase records a paid order line so the user counts as a buyer of
// the product.
func SeedPurchase(t testing.TB, db *gorm.DB, userID, productID uuid.UUID) models.OrderLine {
	t.Helper()
	line := models.OrderLine{
		OrderID:     uuid.New(),
		PaymentID:   uuid.New(),
		UserID:      userID,
		ProductID:   productID,
		ProductName: gofakeit.ProductName(),
		Quantity:    1,
		UnitPrice:   decimal.RequireFromString("100.00"),
		Ordered:     true,
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	return line
}

// SeedGalleryImage attaches a gallery image to the product.
func SeedGalleryImage(t testing.TB, db *gorm.DB, productID uuid.UUID, url string, position int) models.GalleryImage {
	t.Helper()
	image := models.GalleryImage{ProductID: productID, URL: url, Position: position}
	if err := db.Create(&image).Error; err != nil {
		t.Fatalf("seed gallery image: %v", err)
	}
	return image
}
