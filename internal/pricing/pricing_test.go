package pricing

import (
	"testing"

	"prefest/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		base     float64
		coupon   *models.Coupon
		fee      string
		discount string
		total    string
	}{
		{
			name:     "no coupon",
			base:     100,
			fee:      "10.00",
			discount: "0.00",
			total:    "110.00",
		},
		{
			name:     "percentage coupon discounts base only",
			base:     100,
			coupon:   &models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec(20)},
			fee:      "10.00",
			discount: "20.00",
			total:    "90.00",
		},
		{
			name:     "fixed coupon larger than subtotal clamps to zero",
			base:     50,
			coupon:   &models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec(100)},
			fee:      "5.00",
			discount: "100.00",
			total:    "0.00",
		},
		{
			name:     "fixed coupon",
			base:     80,
			coupon:   &models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec(15.5)},
			fee:      "8.00",
			discount: "15.50",
			total:    "72.50",
		},
		{
			name:     "free event",
			base:     0,
			fee:      "0.00",
			discount: "0.00",
			total:    "0.00",
		},
		{
			name:     "full percentage coupon leaves the fee",
			base:     40,
			coupon:   &models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec(100)},
			fee:      "4.00",
			discount: "40.00",
			total:    "4.00",
		},
		{
			name:     "unknown discount type is ignored",
			base:     10,
			coupon:   &models.Coupon{DiscountType: "bogus", DiscountValue: dec(5)},
			fee:      "1.00",
			discount: "0.00",
			total:    "11.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Quote(dec(tt.base), tt.coupon)

			assert.Equal(t, tt.fee, Display(b.Fee))
			assert.Equal(t, tt.discount, Display(b.Discount))
			assert.Equal(t, tt.total, Display(b.Total))
		})
	}
}

func TestQuote_PercentageMatchesClosedForm(t *testing.T) {
	for _, base := range []float64{0, 1, 9.99, 37.5, 100, 1234.56} {
		for _, v := range []float64{0, 10, 33, 50, 90, 100} {
			coupon := &models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec(v)}
			got := Quote(dec(base), coupon).Total

			// base*1.10 - base*v/100
			want := dec(base).Mul(dec(1.10)).Sub(dec(base).Mul(dec(v)).Div(decimal.NewFromInt(100)))
			if want.IsNegative() {
				want = decimal.Zero
			}
			assert.True(t, want.Equal(got), "base=%v v=%v want=%s got=%s", base, v, want, got)
		}
	}
}

func TestQuote_NeverNegative(t *testing.T) {
	coupon := &models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec(1e6)}
	for _, base := range []float64{0, 0.01, 5, 999} {
		assert.False(t, Quote(dec(base), coupon).Total.IsNegative())
	}
}

func TestBreakdown_MinorUnitsAndFree(t *testing.T) {
	b := Quote(dec(19.99), nil)
	assert.Equal(t, int64(2199), b.MinorUnits())
	assert.False(t, b.IsFree())

	free := Quote(dec(10), &models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec(11)})
	assert.True(t, free.IsFree())
	assert.Equal(t, int64(0), free.MinorUnits())
}

func TestBasePrice(t *testing.T) {
	event := models.Event{Price: dec(30)}
	assert.True(t, dec(30).Equal(BasePrice(event, nil)))
	assert.True(t, dec(45).Equal(BasePrice(event, &models.TicketType{Price: dec(45)})))
}
