package enums

import "strings"

// PaymentMethod identifies which adapter settled an order.
type PaymentMethod string

const (
	PaymentMethodCOD           PaymentMethod = "cod"
	PaymentMethodOnline        PaymentMethod = "online"
	PaymentMethodSignedGateway PaymentMethod = "signed_gateway"
)

var paymentMethods = set[PaymentMethod]{PaymentMethodCOD, PaymentMethodOnline, PaymentMethodSignedGateway}

var paymentMethodAliases = map[string]PaymentMethod{
	"cash_on_delivery": PaymentMethodCOD,
	"cash on delivery": PaymentMethodCOD,
	"razorpay":         PaymentMethodSignedGateway,
	"gateway":          PaymentMethodSignedGateway,
	"paypal":           PaymentMethodOnline,
	"card":             PaymentMethodOnline,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// Label is the human readable name used on invoices and emails.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentMethodCOD:
		return "Cash On Delivery"
	case PaymentMethodOnline:
		return "Online"
	case PaymentMethodSignedGateway:
		return "Razorpay"
	default:
		return string(p)
	}
}

func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

// ParsePaymentMethod converts raw input into a PaymentMethod. Matching is
// case-insensitive and accepts the legacy storefront spellings.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	if alias, ok := paymentMethodAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return alias, nil
	}
	return paymentMethods.parse("payment method", value, true)
}
