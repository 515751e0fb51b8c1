package payments

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// MinorUnits converts an amount into the currency's smallest unit (paise, cents).
func MinorUnits(amount decimal.Decimal, unit currency.Unit) int64 {
	scale, _ := currency.Standard.Rounding(unit)
	return amount.Shift(int32(scale)).Round(0).IntPart()
}
