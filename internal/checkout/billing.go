package checkout

import (
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

const emptyCartRedirect = "/api/v1/products"

var validate = validator.New()

func emptyCartError() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").
		WithDetails(map[string]any{"redirect": emptyCartRedirect})
}

func normalizeBilling(in Billing) (Billing, error) {
	out := Billing{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		AddressLine1: strings.TrimSpace(in.AddressLine1),
		AddressLine2: strings.TrimSpace(in.AddressLine2),
		Country:      strings.TrimSpace(in.Country),
		State:        strings.TrimSpace(in.State),
		City:         strings.TrimSpace(in.City),
		OrderNote:    strings.TrimSpace(in.OrderNote),
	}

	required := map[string]string{
		"first_name":     out.FirstName,
		"last_name":      out.LastName,
		"phone":          out.Phone,
		"email":          out.Email,
		"address_line_1": out.AddressLine1,
		"country":        out.Country,
		"state":          out.State,
		"city":           out.City,
	}
	missing := map[string]string{}
	for field, value := range required {
		if value == "" {
			missing[field] = "required"
		}
	}
	if len(missing) > 0 {
		return Billing{}, pkgerrors.New(pkgerrors.CodeValidation, "billing details incomplete").WithDetails(missing)
	}
	if err := validate.Var(out.Email, "email"); err != nil {
		return Billing{}, pkgerrors.New(pkgerrors.CodeValidation, "billing details incomplete").
			WithDetails(map[string]string{"email": "email"})
	}
	return out, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
