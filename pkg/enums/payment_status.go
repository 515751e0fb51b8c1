package enums

// PaymentStatus is stored on the payments row exactly as the storefront has
// always displayed it, capitalised.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

var paymentStatuses = set[PaymentStatus]{PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.has(p) }

// ParsePaymentStatus accepts any casing, so a gateway callback reporting
// "COMPLETED" maps to PaymentStatusCompleted.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value, true)
}
