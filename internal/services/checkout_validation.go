package services

import (
	"html"
	"net/mail"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxNotesLength = 1000

// Free-text checkout fields end up in staff tooling and emails; markup is stripped.
var plainTextPolicy = bluemonday.StrictPolicy()

func sanitizeText(value string) string {
	cleaned := plainTextPolicy.Sanitize(strings.TrimSpace(value))
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// normaliseCheckout trims and validates the checkout payload, returning a copy that is safe to store.
func normaliseCheckout(details CheckoutDetails) (CheckoutDetails, error) {
	out := CheckoutDetails{
		Email:          strings.TrimSpace(details.Email),
		Phone:          strings.TrimSpace(details.Phone),
		ShippingMethod: sanitizeText(details.ShippingMethod),
		PaymentMethod:  strings.TrimSpace(details.PaymentMethod),
		Notes:          sanitizeText(details.Notes),
		CouponCode:     strings.ToUpper(strings.TrimSpace(details.CouponCode)),
	}

	if out.Email == "" {
		return CheckoutDetails{}, newError(ErrInvalidInput, "email is required")
	}
	if _, err := mail.ParseAddress(out.Email); err != nil {
		return CheckoutDetails{}, newError(ErrInvalidInput, "email %q is invalid", out.Email)
	}
	if out.PaymentMethod == "" {
		return CheckoutDetails{}, newError(ErrInvalidInput, "payment method is required")
	}
	if len(out.Notes) > maxNotesLength {
		return CheckoutDetails{}, newError(ErrInvalidInput, "notes must be at most %d characters", maxNotesLength)
	}

	shipping, err := normaliseAddress("shipping address", details.ShippingAddress)
	if err != nil {
		return CheckoutDetails{}, err
	}
	out.ShippingAddress = shipping

	if details.BillingAddress != nil {
		billing, err := normaliseAddress("billing address", *details.BillingAddress)
		if err != nil {
			return CheckoutDetails{}, err
		}
		out.BillingAddress = &billing
	} else {
		billing := cloneAddress(shipping)
		out.BillingAddress = &billing
	}
	return out, nil
}

func normaliseAddress(label string, addr Address) (Address, error) {
	out := Address{
		Recipient:  strings.TrimSpace(addr.Recipient),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      trimmedPtr(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      trimmedPtr(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
		Phone:      trimmedPtr(addr.Phone),
	}
	required := []struct {
		field string
		value string
	}{
		{"recipient", out.Recipient},
		{"line1", out.Line1},
		{"city", out.City},
		{"postalCode", out.PostalCode},
		{"country", out.Country},
	}
	for _, r := range required {
		if r.value == "" {
			return Address{}, newError(ErrInvalidInput, "%s %s is required", label, r.field)
		}
	}
	return out, nil
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneAddress(addr Address) Address {
	addr.Line2 = cloneStringPtr(addr.Line2)
	addr.State = cloneStringPtr(addr.State)
	addr.Phone = cloneStringPtr(addr.Phone)
	return addr
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	ref := *value
	return &ref
}
