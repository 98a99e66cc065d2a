package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

type CouponKind int

const (
	CouponPercent CouponKind = iota + 1
	CouponFlat
)

type Coupon struct {
	Code  string
	Kind  CouponKind
	Value decimal.Decimal
}

// Discount is the amount taken off for the given subtotal, rounded to cents.
func (c Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	switch c.Kind {
	case CouponPercent:
		return roundMoney(subtotal.Mul(c.Value).Div(hundred))
	case CouponFlat:
		return roundMoney(c.Value)
	default:
		return decimal.Zero
	}
}

// DefaultCoupons is the fixed coupon table.
func DefaultCoupons() map[string]Coupon {
	coupons := []Coupon{
		{Code: "SAVE10", Kind: CouponPercent, Value: decimal.NewFromInt(10)},
		{Code: "SAVE5", Kind: CouponFlat, Value: decimal.RequireFromString("5.00")},
		{Code: "FREESHIP", Kind: CouponFlat, Value: decimal.RequireFromString("5.99")},
		{Code: "WELCOME20", Kind: CouponPercent, Value: decimal.NewFromInt(20)},
	}
	out := make(map[string]Coupon, len(coupons))
	for _, c := range coupons {
		out[c.Code] = c
	}
	return out
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
