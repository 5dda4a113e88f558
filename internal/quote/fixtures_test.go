package quote

import (
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

func flatValve() catalog.Product {
	return catalog.Product{
		ID:       "valve",
		SKU:      "VALVE-100",
		Name:     "Ball Valve 100mm",
		Brand:    "Acme",
		Category: "Valves",
		Images:   []catalog.Image{{URL: "/img/valve.jpg"}},
		LeadTime: "1-2 weeks",
		Price:    pricing.Cents(10_000),
	}
}

func sizedGate() catalog.Product {
	return catalog.Product{
		ID:          "gate",
		SKU:         "GATE",
		Name:        "Gate Valve",
		Brand:       "Acme",
		Category:    "Valves",
		LeadTime:    "6-8 weeks",
		PriceVaries: true,
		Price:       pricing.Cents(99_999),
		SizeOptions: []catalog.SizeOption{
			{Value: "DN50", Label: "50mm", Price: pricing.Cents(5_000), SKU: "GATE-50"},
			{Value: "DN80", Label: "80mm"},
		},
	}
}

func straubCoupling() catalog.Product {
	return catalog.Product{
		ID:       "straub",
		SKU:      "STRAUB-GRIP",
		Name:     "Straub Grip Coupling",
		Brand:    "Straub",
		Category: "Couplings",
		Price:    pricing.Cents(20_000),
		SizeOptions: []catalog.SizeOption{
			{Value: "OD114", Label: "114.3mm OD"},
		},
	}
}

func testResolver() Resolver {
	return NewResolver([]string{"Straub", "Teekay"})
}
