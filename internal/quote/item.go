package quote

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Item is one line of a quote. Display fields are a snapshot taken at build
// time; later catalog edits do not change an item already built.
type Item struct {
	ID               string
	ProductID        string
	Name             string
	Brand            string
	Category         string
	Image            string
	Quantity         int
	Source           Source
	MaterialTestCert bool
	LeadTime         string
}

// UnitPrice returns the item's unit price, or nil when priced on application.
func (i Item) UnitPrice() *pricing.Money {
	switch s := i.Source.(type) {
	case Variation:
		return s.UnitPrice
	case Flat:
		return s.Price
	default:
		return nil
	}
}

// SKU returns the resolved display SKU.
func (i Item) SKU() string {
	switch s := i.Source.(type) {
	case Variation:
		return s.SKU
	case Flat:
		return s.SKU
	case CustomSpecs:
		return s.SKU
	default:
		return ""
	}
}

// Size returns the selected size value, if any.
func (i Item) Size() string {
	if v, ok := i.Source.(Variation); ok {
		return v.Size
	}
	return ""
}

// SizeLabel returns the selected size label, if any.
func (i Item) SizeLabel() string {
	if v, ok := i.Source.(Variation); ok {
		return v.SizeLabel
	}
	return ""
}

// IsCustom reports whether the item carries custom specifications.
func (i Item) IsCustom() bool {
	_, ok := i.Source.(CustomSpecs)
	return ok
}

// Line returns the pricing view of the item.
func (i Item) Line() pricing.Line {
	return pricing.Line{
		SKU:              i.SKU(),
		Quantity:         i.Quantity,
		UnitPrice:        i.UnitPrice(),
		MaterialTestCert: i.MaterialTestCert,
	}
}

// Lines converts items into pricing lines.
func Lines(items []Item) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.Line())
	}
	return lines
}

const (
	kindFlat      = "flat"
	kindVariation = "variation"
	kindCustom    = "custom"
)

type itemJSON struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"productId"`
	Name             string          `json:"name"`
	Brand            string          `json:"brand"`
	Category         string          `json:"category"`
	Image            string          `json:"image"`
	Quantity         int             `json:"quantity"`
	Kind             string          `json:"kind"`
	SKU              string          `json:"sku"`
	UnitPrice        *pricing.Money  `json:"unitPrice"`
	Variation        *Variation      `json:"variation,omitempty"`
	CustomSpecs      json.RawMessage `json:"customSpecs,omitempty"`
	MaterialTestCert bool            `json:"materialTestCert"`
	LeadTime         string          `json:"leadTime,omitempty"`
}

// MarshalJSON encodes the item with an explicit source kind.
func (i Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{
		ID:               i.ID,
		ProductID:        i.ProductID,
		Name:             i.Name,
		Brand:            i.Brand,
		Category:         i.Category,
		Image:            i.Image,
		Quantity:         i.Quantity,
		SKU:              i.SKU(),
		UnitPrice:        i.UnitPrice(),
		MaterialTestCert: i.MaterialTestCert,
		LeadTime:         i.LeadTime,
	}
	switch s := i.Source.(type) {
	case Variation:
		out.Kind = kindVariation
		v := s
		out.Variation = &v
	case CustomSpecs:
		out.Kind = kindCustom
		out.CustomSpecs = s.Specs
	default:
		out.Kind = kindFlat
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores an item encoded by MarshalJSON.
func (i *Item) UnmarshalJSON(data []byte) error {
	var in itemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*i = Item{
		ID:               in.ID,
		ProductID:        in.ProductID,
		Name:             in.Name,
		Brand:            in.Brand,
		Category:         in.Category,
		Image:            in.Image,
		Quantity:         in.Quantity,
		MaterialTestCert: in.MaterialTestCert,
		LeadTime:         in.LeadTime,
	}
	switch in.Kind {
	case kindVariation:
		if in.Variation == nil {
			return fmt.Errorf("quote: item %s: variation kind without variation", in.ID)
		}
		i.Source = *in.Variation
	case kindCustom:
		i.Source = CustomSpecs{SKU: in.SKU, Specs: in.CustomSpecs}
	case kindFlat, "":
		i.Source = Flat{Price: in.UnitPrice, SKU: in.SKU}
	default:
		return fmt.Errorf("quote: item %s: unknown kind %q", in.ID, in.Kind)
	}
	return nil
}

// BuildOptions are the customer's selections for one product.
type BuildOptions struct {
	Size             string
	Quantity         int
	MaterialTestCert bool
	CustomSpecs      json.RawMessage
}

// Builder turns catalog products into quote items.
type Builder struct {
	Resolver         Resolver
	PlaceholderImage string
	NewID            func() string
}

// Build composes an item. Nothing is returned when resolution fails.
func (b Builder) Build(p catalog.Product, opts BuildOptions) (Item, error) {
	if opts.Quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	src, err := b.Resolver.Resolve(p, opts.Size)
	if err != nil {
		return Item{}, err
	}
	if custom, ok := src.(CustomSpecs); ok {
		if len(opts.CustomSpecs) > 0 {
			custom.Specs = append(json.RawMessage(nil), opts.CustomSpecs...)
		}
		src = custom
	} else if len(opts.CustomSpecs) > 0 {
		return Item{}, ErrCustomSpecsUnsupported
	}

	newID := b.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return Item{
		ID:               newID(),
		ProductID:        p.ID,
		Name:             p.Name,
		Brand:            p.Brand,
		Category:         p.Category,
		Image:            p.PrimaryImage(b.PlaceholderImage),
		Quantity:         opts.Quantity,
		Source:           src,
		MaterialTestCert: opts.MaterialTestCert,
		LeadTime:         p.LeadTime,
	}, nil
}
