package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Tier is a bulk discount threshold.
type Tier struct {
	MinQuantity int    `json:"minQuantity"`
	Percentage  int    `json:"percentage"`
	Label       string `json:"label"`
}

// DefaultTiers is the storefront's standard bulk discount table.
func DefaultTiers() []Tier {
	return []Tier{
		{MinQuantity: 10, Percentage: 15, Label: "10+ items"},
		{MinQuantity: 5, Percentage: 10, Label: "5+ items"},
		{MinQuantity: 2, Percentage: 5, Label: "2+ items"},
	}
}

// DiscountEngine selects bulk discount tiers.
//
// The quantity passed to TierFor and DiscountedUnitPrice is always the total
// quantity across the whole cart, never a single line's quantity. Buying
// several different products therefore unlocks the same tier as buying many
// units of one product.
type DiscountEngine struct {
	tiers []Tier
}

// NewDiscountEngine copies tiers and orders them highest threshold first.
func NewDiscountEngine(tiers []Tier) DiscountEngine {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinQuantity > sorted[j].MinQuantity
	})
	return DiscountEngine{tiers: sorted}
}

// Tiers returns the policy table, highest threshold first.
func (e DiscountEngine) Tiers() []Tier {
	out := make([]Tier, len(e.tiers))
	copy(out, e.tiers)
	return out
}

// TierFor returns the first tier whose threshold is met. Tiers do not stack.
func (e DiscountEngine) TierFor(cartQty int) (Tier, bool) {
	for _, t := range e.tiers {
		if cartQty >= t.MinQuantity {
			return t, true
		}
	}
	return Tier{}, false
}

// NextTier returns the nearest tier above the one cartQty currently reaches.
func (e DiscountEngine) NextTier(cartQty int) (Tier, bool) {
	current := e.Percentage(cartQty)
	var (
		next  Tier
		found bool
	)
	for _, t := range e.tiers {
		if t.MinQuantity > cartQty && t.Percentage > current {
			next, found = t, true
		}
	}
	return next, found
}

// Percentage returns the discount percentage for the cart quantity, or zero.
func (e DiscountEngine) Percentage(cartQty int) int {
	t, ok := e.TierFor(cartQty)
	if !ok {
		return 0
	}
	return t.Percentage
}

// DiscountedUnitPrice applies the cart-wide tier to a unit price. The result
// is exact; rounding happens only when totals are presented.
func (e DiscountEngine) DiscountedUnitPrice(unitPrice decimal.Decimal, cartQty int) decimal.Decimal {
	pct := e.Percentage(cartQty)
	if pct == 0 {
		return unitPrice
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(pct))).Div(hundred)
	return unitPrice.Mul(factor)
}
