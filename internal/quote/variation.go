package quote

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

// Source is the pricing source of a quote item. It is sealed: the only
// implementations are Flat, Variation and CustomSpecs, so an item can never
// carry a variation and custom specifications at the same time.
type Source interface {
	source()
}

// Flat means the product's own price and SKU apply. A nil Price is POA.
type Flat struct {
	Price *pricing.Money `json:"price,omitempty"`
	SKU   string         `json:"sku"`
}

// Variation is the resolved pricing of one size option. A nil UnitPrice is POA.
type Variation struct {
	Size      string         `json:"size"`
	SizeLabel string         `json:"sizeLabel"`
	SKU       string         `json:"sku"`
	UnitPrice *pricing.Money `json:"unitPrice,omitempty"`
}

// CustomSpecs marks an item priced on application from a free-form payload.
// SKU is the product's base SKU.
type CustomSpecs struct {
	SKU   string          `json:"sku"`
	Specs json.RawMessage `json:"specs,omitempty"`
}

func (Flat) source()        {}
func (Variation) source()   {}
func (CustomSpecs) source() {}

// Resolver maps a product and size selection to a pricing source.
type Resolver struct {
	customSpecBrands map[string]struct{}
}

// NewResolver builds a resolver. Brands are matched case-insensitively.
func NewResolver(customSpecBrands []string) Resolver {
	set := make(map[string]struct{}, len(customSpecBrands))
	for _, b := range customSpecBrands {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			set[b] = struct{}{}
		}
	}
	return Resolver{customSpecBrands: set}
}

// RequiresCustomSpecs reports whether brand is on the custom-specs allow-list.
func (r Resolver) RequiresCustomSpecs(brand string) bool {
	_, ok := r.customSpecBrands[strings.ToLower(strings.TrimSpace(brand))]
	return ok
}

// Resolve returns the pricing source for product p at the selected size.
// An empty size means no selection.
func (r Resolver) Resolve(p catalog.Product, size string) (Source, error) {
	if r.RequiresCustomSpecs(p.Brand) {
		return CustomSpecs{SKU: p.SKU}, nil
	}

	// a varying product never falls back to its base price, even with no options
	if p.PriceVaries {
		if size == "" {
			return nil, ErrSizeRequired
		}
		opt, ok := p.FindSize(size)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSize, size)
		}
		// no fallback to the product price: a missing option price is POA
		return variationOf(p, opt, opt.Price), nil
	}

	switch {
	case len(p.SizeOptions) == 1:
		opt := p.SizeOptions[0]
		if size != "" && size != opt.Value {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSize, size)
		}
		return variationOf(p, opt, firstPrice(opt.Price, p.Price)), nil
	case len(p.SizeOptions) > 1 && size != "":
		opt, ok := p.FindSize(size)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSize, size)
		}
		return variationOf(p, opt, firstPrice(opt.Price, p.Price)), nil
	default:
		return Flat{Price: clonePrice(p.Price), SKU: p.SKU}, nil
	}
}

func variationOf(p catalog.Product, opt catalog.SizeOption, price *pricing.Money) Variation {
	sku := opt.SKU
	if sku == "" {
		sku = p.SKU
	}
	return Variation{
		Size:      opt.Value,
		SizeLabel: opt.Label,
		SKU:       sku,
		UnitPrice: clonePrice(price),
	}
}

func firstPrice(prices ...*pricing.Money) *pricing.Money {
	for _, p := range prices {
		if p != nil {
			return p
		}
	}
	return nil
}

func clonePrice(p *pricing.Money) *pricing.Money {
	if p == nil {
		return nil
	}
	return pricing.Cents(*p)
}
