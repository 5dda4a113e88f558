package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTierForBoundaries(t *testing.T) {
	engine := NewDiscountEngine(DefaultTiers())
	cases := []struct {
		qty  int
		want int
	}{
		{-1, 0}, {0, 0}, {1, 0},
		{2, 5}, {3, 5}, {4, 5},
		{5, 10}, {9, 10},
		{10, 15}, {11, 15}, {500, 15},
	}
	for _, tc := range cases {
		if got := engine.Percentage(tc.qty); got != tc.want {
			t.Fatalf("qty %d: expected %d%%, got %d%%", tc.qty, tc.want, got)
		}
	}
}

func TestTierForNoTierBelowTwo(t *testing.T) {
	engine := NewDiscountEngine(DefaultTiers())
	if _, ok := engine.TierFor(1); ok {
		t.Fatal("expected no tier for a single unit")
	}
	price := decimal.RequireFromString("123.4567")
	if got := engine.DiscountedUnitPrice(price, 1); !got.Equal(price) {
		t.Fatalf("expected identity price, got %s", got)
	}
}

func TestTiersSortedRegardlessOfInputOrder(t *testing.T) {
	engine := NewDiscountEngine([]Tier{
		{MinQuantity: 2, Percentage: 5},
		{MinQuantity: 10, Percentage: 15},
		{MinQuantity: 5, Percentage: 10},
	})
	tier, ok := engine.TierFor(12)
	if !ok || tier.Percentage != 15 {
		t.Fatalf("expected highest applicable tier, got %+v", tier)
	}
	if engine.Tiers()[0].MinQuantity != 10 {
		t.Fatalf("expected tiers ordered highest first, got %+v", engine.Tiers())
	}
}

func TestDiscountedUnitPriceIsExact(t *testing.T) {
	engine := NewDiscountEngine(DefaultTiers())
	got := engine.DiscountedUnitPrice(decimal.RequireFromString("99.99"), 3)
	if !got.Equal(decimal.RequireFromString("94.9905")) {
		t.Fatalf("expected unrounded 94.9905, got %s", got)
	}
	got = engine.DiscountedUnitPrice(decimal.NewFromInt(100), 5)
	if !got.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected 90, got %s", got)
	}
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("10:15, 5:10:Trade ,2:5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}
	if tiers[1].Label != "Trade" || tiers[2].Label != "2+ items" {
		t.Fatalf("unexpected labels %+v", tiers)
	}
	if _, err := ParseTiers("ten:15"); err == nil {
		t.Fatal("expected error for non-numeric threshold")
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	p := DefaultPolicy()
	p.Tiers = append(p.Tiers, Tier{MinQuantity: 5, Percentage: 20})
	if err := p.Validate(); err == nil {
		t.Fatal("expected duplicate threshold error")
	}
	p = DefaultPolicy()
	p.Tiers = []Tier{{MinQuantity: 3, Percentage: 120}}
	if err := p.Validate(); err == nil {
		t.Fatal("expected percentage range error")
	}
}

func TestFormat(t *testing.T) {
	cases := map[Money]string{
		0:         "$0.00",
		5:         "$0.05",
		31350:     "$313.50",
		123456789: "$1,234,567.89",
		-1500:     "-$15.00",
	}
	for in, want := range cases {
		if got := Format(in); got != want {
			t.Fatalf("Format(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestNextTier(t *testing.T) {
	engine := NewDiscountEngine(DefaultTiers())
	cases := map[int]int{0: 2, 1: 2, 2: 5, 4: 5, 5: 10, 9: 10}
	for qty, want := range cases {
		next, ok := engine.NextTier(qty)
		if !ok || next.MinQuantity != want {
			t.Fatalf("qty %d: expected next tier at %d, got %+v (ok=%v)", qty, want, next, ok)
		}
	}
	if _, ok := engine.NextTier(10); ok {
		t.Fatal("expected no tier beyond the top one")
	}
}
