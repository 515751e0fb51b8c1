package cart

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
)

// Totals is the priced summary of a set of cart lines.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Quantity   int             `json:"quantity"`
}

// LinePrice is the current unit price times quantity for a line.
func LinePrice(line models.CartLine) decimal.Decimal {
	if line.Product == nil {
		return decimal.Zero
	}
	return line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// ComputeTotals sums the lines at current prices and applies rate as tax.
// Tax is rounded half away from zero to two places.
func ComputeTotals(lines []models.CartLine, rate decimal.Decimal) Totals {
	subtotal := lo.Reduce(lines, func(acc decimal.Decimal, line models.CartLine, _ int) decimal.Decimal {
		return acc.Add(LinePrice(line))
	}, decimal.Zero).Round(2)
	tax := subtotal.Mul(rate).Round(2)

	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		GrandTotal: subtotal.Add(tax),
		Quantity: lo.SumBy(lines, func(line models.CartLine) int {
			return line.Quantity
		}),
	}
}
