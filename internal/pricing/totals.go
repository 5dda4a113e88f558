package pricing

import (
	"github.com/shopspring/decimal"
)

// Options carries per-quote inputs to Compute.
type Options struct {
	ShippingCost *Money
}

// Totals holds the exact, unrounded result of a quote computation.
type Totals struct {
	TotalQuantity    int
	Tier             *Tier
	Subtotal         decimal.Decimal
	Savings          decimal.Decimal
	CertFee          decimal.Decimal
	CertCount        int
	Shipping         decimal.Decimal
	PreTax           decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
	HasUnpricedItems bool
}

// Summary is the presentation form of Totals, rounded to cents.
type Summary struct {
	TotalQuantity    int    `json:"totalQuantity"`
	DiscountPercent  int    `json:"discountPercent"`
	DiscountLabel    string `json:"discountLabel,omitempty"`
	Subtotal         Money  `json:"subtotal"`
	Savings          Money  `json:"savings"`
	CertFee          Money  `json:"certFee"`
	CertCount        int    `json:"certCount"`
	Shipping         Money  `json:"shipping"`
	PreTax           Money  `json:"preTax"`
	Tax              Money  `json:"tax"`
	Total            Money  `json:"total"`
	HasUnpricedItems bool   `json:"hasUnpricedItems"`
}

// Calculator computes quote totals under a pricing policy.
type Calculator struct {
	Discounts     DiscountEngine
	TaxRateBps    int
	CertFeePerSKU Money
}

// NewCalculator builds a calculator from a policy.
func NewCalculator(p Policy) Calculator {
	return Calculator{
		Discounts:     NewDiscountEngine(p.Tiers),
		TaxRateBps:    p.TaxRateBps,
		CertFeePerSKU: p.CertFeePerSKU,
	}
}

// TotalQuantity sums quantities across all lines, priced or not.
func TotalQuantity(lines []Line) int {
	var qty int
	for _, l := range lines {
		if l.Quantity > 0 {
			qty += l.Quantity
		}
	}
	return qty
}

// Compute prices the lines. Lines without a unit price are excluded from the
// sums and reported through HasUnpricedItems.
func (c Calculator) Compute(lines []Line, opts Options) Totals {
	var t Totals
	t.TotalQuantity = TotalQuantity(lines)
	if tier, ok := c.Discounts.TierFor(t.TotalQuantity); ok {
		t.Tier = &tier
	}

	discounted := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if l.UnitPrice == nil {
			t.HasUnpricedItems = true
			continue
		}
		unit := FromCents(*l.UnitPrice)
		qty := decimal.NewFromInt(int64(l.Quantity))
		t.Subtotal = t.Subtotal.Add(unit.Mul(qty))
		discounted = discounted.Add(c.Discounts.DiscountedUnitPrice(unit, t.TotalQuantity).Mul(qty))
	}
	t.Savings = t.Subtotal.Sub(discounted)
	t.CertFee, t.CertCount = CertFee(lines, c.CertFeePerSKU)
	if opts.ShippingCost != nil {
		t.Shipping = FromCents(*opts.ShippingCost)
	}

	t.PreTax = t.Subtotal.Sub(t.Savings).Add(t.CertFee).Add(t.Shipping)
	t.Tax = t.PreTax.Mul(decimal.New(int64(c.TaxRateBps), -4))
	t.Total = t.PreTax.Add(t.Tax)
	return t
}

// Summary rounds every figure to cents for display.
func (t Totals) Summary() Summary {
	s := Summary{
		TotalQuantity:    t.TotalQuantity,
		Subtotal:         ToCents(t.Subtotal),
		Savings:          ToCents(t.Savings),
		CertFee:          ToCents(t.CertFee),
		CertCount:        t.CertCount,
		Shipping:         ToCents(t.Shipping),
		PreTax:           ToCents(t.PreTax),
		Tax:              ToCents(t.Tax),
		Total:            ToCents(t.Total),
		HasUnpricedItems: t.HasUnpricedItems,
	}
	if t.Tier != nil {
		s.DiscountPercent = t.Tier.Percentage
		s.DiscountLabel = t.Tier.Label
	}
	return s
}
