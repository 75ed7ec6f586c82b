package domain

const basisPointsDenominator = 10_000

// PricingPolicy controls how order totals are derived from line items.
type PricingPolicy struct {
	Currency string
	// TaxRateBasisPoints is the tax rate in 1/100 of a percent; 1000 = 10%.
	TaxRateBasisPoints int64
	// FlatShipping is charged once per order in minor units.
	FlatShipping int64
}

// LineTotal returns price × quantity for a single line.
func LineTotal(unitPrice int64, quantity int) int64 {
	return unitPrice * int64(quantity)
}

// ComputeTotals derives subtotal, tax, shipping and total for the given items.
// Tax is rounded half-up to the minor unit. The total is never recomputed after order creation.
func ComputeTotals(items []OrderLineItem, policy PricingPolicy, discount int64) OrderTotals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Total
	}
	if discount < 0 {
		discount = 0
	}
	tax := roundBasisPoints(subtotal, policy.TaxRateBasisPoints)
	shipping := policy.FlatShipping
	if shipping < 0 {
		shipping = 0
	}
	return OrderTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    subtotal + tax + shipping - discount,
	}
}

// Consistent reports whether Total equals Subtotal + Tax + Shipping - Discount.
func (t OrderTotals) Consistent() bool {
	return t.Total == t.Subtotal+t.Tax+t.Shipping-t.Discount
}

func roundBasisPoints(amount, bp int64) int64 {
	if amount <= 0 || bp <= 0 {
		return 0
	}
	return (amount*bp + basisPointsDenominator/2) / basisPointsDenominator
}
