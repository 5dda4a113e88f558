package quote

import (
	"time"

	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Cart is a customer's in-progress quote request.
type Cart struct {
	ID        string    `json:"id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TotalQuantity sums quantities over every line, priced or not.
func (c *Cart) TotalQuantity() int {
	var qty int
	for _, it := range c.Items {
		qty += it.Quantity
	}
	return qty
}

// Add puts item into the cart. An existing line for the same product and
// size absorbs the quantity and keeps a certificate request from either side.
// Custom-spec lines are never merged. The returned item is the stored line.
func (c *Cart) Add(item Item) (Item, bool) {
	if !item.IsCustom() {
		for i := range c.Items {
			existing := &c.Items[i]
			if existing.IsCustom() || existing.ProductID != item.ProductID || existing.Size() != item.Size() {
				continue
			}
			existing.Quantity += item.Quantity
			existing.MaterialTestCert = existing.MaterialTestCert || item.MaterialTestCert
			return *existing, true
		}
	}
	c.Items = append(c.Items, item)
	return item, false
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (c *Cart) UpdateQuantity(itemID string, qty int) error {
	if qty <= 0 {
		return c.Remove(itemID)
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = qty
			return nil
		}
	}
	return ErrItemNotFound
}

// SetCertificate toggles the material test certificate on a line.
func (c *Cart) SetCertificate(itemID string, on bool) error {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].MaterialTestCert = on
			return nil
		}
	}
	return ErrItemNotFound
}

// Remove deletes a line.
func (c *Cart) Remove(itemID string) error {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// TierChange reports a discount tier unlocked by a cart change.
type TierChange struct {
	Unlocked bool          `json:"unlocked"`
	Tier     *pricing.Tier `json:"tier,omitempty"`
}

// CompareTiers reports whether the cart moved into a higher discount tier.
func CompareTiers(engine pricing.DiscountEngine, beforeQty, afterQty int) TierChange {
	before := engine.Percentage(beforeQty)
	tier, ok := engine.TierFor(afterQty)
	if !ok || tier.Percentage <= before {
		return TierChange{}
	}
	return TierChange{Unlocked: true, Tier: &tier}
}
