package quote

import (
	"time"

	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Assembler prices items and builds quote aggregates.
type Assembler struct {
	Calculator pricing.Calculator
}

// Price computes exact totals for items with optional shipping.
func (a Assembler) Price(items []Item, shipping *pricing.Money) pricing.Totals {
	return a.Calculator.Compute(Lines(items), pricing.Options{ShippingCost: shipping})
}

// Draft assembles a new draft quote from the cart items. Items are copied so
// later cart changes do not reach the quote.
func (a Assembler) Draft(items []Item, customer Customer, notes string, createdAt time.Time) Quote {
	snapshot := make([]Item, len(items))
	copy(snapshot, items)
	return Quote{
		CreatedAt: createdAt,
		ExpiresAt: ExpiryOf(createdAt),
		Status:    StatusDraft,
		Customer:  customer,
		Notes:     notes,
		Items:     snapshot,
		Totals:    a.Price(snapshot, nil).Summary(),
		Flags:     DetectFlags(snapshot, ClassifyDelivery(customer.Address)),
	}
}

// Reprice recomputes the quote totals with the given shipping cost.
func (a Assembler) Reprice(q *Quote, shipping *pricing.Money, shippingNotes string) {
	q.ShippingCost = clonePrice(shipping)
	q.ShippingNotes = shippingNotes
	q.Totals = a.Price(q.Items, q.ShippingCost).Summary()
}
