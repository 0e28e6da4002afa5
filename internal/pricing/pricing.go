// Package pricing derives the checkout total from a base price and an optional coupon.
package pricing

import (
	"prefest/models"

	"github.com/shopspring/decimal"
)

var (
	// FeeRate is the service fee charged on top of the base price.
	FeeRate = decimal.NewFromFloat(0.10)

	hundred = decimal.NewFromInt(100)
)

type Breakdown struct {
	Base     decimal.Decimal `json:"base"`
	Fee      decimal.Decimal `json:"fee"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Quote computes max(0, base + fee - discount). The discount is taken on the
// base price only, never on the fee.
func Quote(base decimal.Decimal, coupon *models.Coupon) Breakdown {
	if base.IsNegative() {
		base = decimal.Zero
	}
	fee := base.Mul(FeeRate)
	discount := Discount(base, coupon)

	total := base.Add(fee).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{Base: base, Fee: fee, Discount: discount, Total: total}
}

// Discount returns the raw coupon discount for base, without clamping.
func Discount(base decimal.Decimal, coupon *models.Coupon) decimal.Decimal {
	if coupon == nil || coupon.DiscountValue.IsNegative() {
		return decimal.Zero
	}
	switch coupon.DiscountType {
	case models.DiscountPercentage:
		return base.Mul(coupon.DiscountValue).Div(hundred)
	case models.DiscountFixed:
		return coupon.DiscountValue
	}
	return decimal.Zero
}

// IsFree reports whether the checkout skips the payment gateway.
func (b Breakdown) IsFree() bool {
	return b.Total.IsZero()
}

// MinorUnits converts the total to the integer amount used by the payment gateway.
func (b Breakdown) MinorUnits() int64 {
	return b.Total.Mul(hundred).Round(0).IntPart()
}

// Display formats an amount with two decimals.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// BasePrice picks the ticket type price, or the event price when no ticket type applies.
func BasePrice(event models.Event, ticketType *models.TicketType) decimal.Decimal {
	if ticketType != nil {
		return ticketType.Price
	}
	return event.Price
}
