// Package pricing computes cart quotes from catalog prices. Nothing here
// touches storage and nothing here fails: bad lines and unknown coupons
// degrade to zero amounts.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/catalog"
)

var hundred = decimal.NewFromInt(100)

type Line struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type PricedLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	IsAvailable bool
}

// Options carries the optional caller overrides. Nil means "use the default";
// negative overrides are ignored.
type Options struct {
	CouponCode  string
	TaxRate     *decimal.Decimal
	DeliveryFee *decimal.Decimal
}

type Quote struct {
	Lines          []PricedLine
	SubTotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DeliveryFee    decimal.Decimal
	DiscountAmount decimal.Decimal
	GrandTotal     decimal.Decimal
	CouponApplied  bool
}

type Engine struct {
	TaxRate               decimal.Decimal
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	Coupons               map[string]Coupon
}

func NewEngine() *Engine {
	return &Engine{
		TaxRate:               decimal.RequireFromString("0.08"),
		DeliveryFee:           decimal.RequireFromString("5.99"),
		FreeDeliveryThreshold: decimal.NewFromInt(50),
		Coupons:               DefaultCoupons(),
	}
}

// PriceLine prices one line against its catalog entry. A nil entry, an
// unavailable product or a non-positive quantity yields a zero line flagged
// unavailable.
func PriceLine(line Line, entry *catalog.Entry) PricedLine {
	pl := PricedLine{ProductID: line.ProductID, Quantity: line.Quantity}
	if entry == nil {
		return pl
	}
	pl.ProductName = entry.Name
	if !entry.IsAvailable || line.Quantity <= 0 {
		return pl
	}
	pl.UnitPrice = entry.Price
	pl.LineTotal = LineTotal(line.Quantity, entry.Price)
	pl.IsAvailable = true
	return pl
}

// LineTotal is quantity × unit price rounded to cents.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return roundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// Sum adds the totals of the chargeable lines.
func Sum(lines []PricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.IsAvailable {
			total = total.Add(l.LineTotal)
		}
	}
	return total
}

// Price builds a quote for lines using entries as the catalog snapshot.
// GrandTotal is floored at zero, so a flat coupon larger than the rest of
// the bill yields a free order rather than a negative total.
func (e *Engine) Price(lines []Line, entries map[int64]catalog.Entry, opts Options) Quote {
	q := Quote{Lines: make([]PricedLine, 0, len(lines))}
	for _, line := range lines {
		var entry *catalog.Entry
		if en, ok := entries[line.ProductID]; ok {
			entry = &en
		}
		q.Lines = append(q.Lines, PriceLine(line, entry))
	}

	q.SubTotal = roundMoney(Sum(q.Lines))

	rate := e.TaxRate
	if opts.TaxRate != nil && !opts.TaxRate.IsNegative() {
		rate = *opts.TaxRate
	}
	q.TaxAmount = roundMoney(q.SubTotal.Mul(rate))

	switch {
	case opts.DeliveryFee != nil && !opts.DeliveryFee.IsNegative():
		q.DeliveryFee = roundMoney(*opts.DeliveryFee)
	case q.SubTotal.GreaterThan(e.FreeDeliveryThreshold):
		q.DeliveryFee = decimal.Zero
	default:
		q.DeliveryFee = roundMoney(e.DeliveryFee)
	}

	q.DiscountAmount = decimal.Zero
	if code := normalizeCode(opts.CouponCode); code != "" {
		if c, ok := e.Coupons[code]; ok {
			q.DiscountAmount = c.Discount(q.SubTotal)
			q.CouponApplied = true
		}
	}

	total := q.SubTotal.Add(q.TaxAmount).Add(q.DeliveryFee).Sub(q.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	q.GrandTotal = roundMoney(total)
	return q
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
