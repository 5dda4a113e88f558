package catalog

import (
	"context"
	"errors"

	"github.com/noah-isme/quotedesk/internal/pricing"
)

// ErrProductNotFound is returned when a product id does not resolve.
var ErrProductNotFound = errors.New("catalog: product not found")

// Product is a catalog entry as seen by the quote engine. It is read-only.
type Product struct {
	ID          string         `json:"id"`
	Slug        string         `json:"slug"`
	SKU         string         `json:"sku"`
	Name        string         `json:"name"`
	Brand       string         `json:"brand"`
	Category    string         `json:"category"`
	Images      []Image        `json:"images"`
	LeadTime    string         `json:"leadTime,omitempty"`
	PriceVaries bool           `json:"priceVaries"`
	Price       *pricing.Money `json:"price,omitempty"`
	SizeOptions []SizeOption   `json:"sizeOptions"`
}

// SizeOption is one purchasable size of a product. Value is unique per product.
type SizeOption struct {
	Value string         `json:"value"`
	Label string         `json:"label"`
	Price *pricing.Money `json:"price,omitempty"`
	SKU   string         `json:"sku,omitempty"`
}

// Image references a product image.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// FindSize returns the option whose value matches exactly.
func (p Product) FindSize(value string) (SizeOption, bool) {
	for _, opt := range p.SizeOptions {
		if opt.Value == value {
			return opt, true
		}
	}
	return SizeOption{}, false
}

// PrimaryImage returns the first image URL or fallback when the product has none.
func (p Product) PrimaryImage(fallback string) string {
	for _, img := range p.Images {
		if img.URL != "" {
			return img.URL
		}
	}
	return fallback
}

// Reader supplies products to the quote engine.
type Reader interface {
	GetProduct(ctx context.Context, id string) (Product, error)
}
