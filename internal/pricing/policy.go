package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Policy groups the market-specific pricing configuration read at startup.
type Policy struct {
	Tiers         []Tier
	TaxRateBps    int
	CertFeePerSKU Money
	Currency      string
}

// DefaultPolicy mirrors the Australian storefront: 10% GST, $350 per certified SKU.
func DefaultPolicy() Policy {
	return Policy{
		Tiers:         DefaultTiers(),
		TaxRateBps:    1000,
		CertFeePerSKU: 35_000,
		Currency:      "AUD",
	}
}

// Validate reports configuration that would produce nonsensical prices.
func (p Policy) Validate() error {
	if p.TaxRateBps < 0 {
		return errors.New("pricing: tax rate must not be negative")
	}
	if p.CertFeePerSKU < 0 {
		return errors.New("pricing: certification fee must not be negative")
	}
	seen := make(map[int]struct{}, len(p.Tiers))
	for _, t := range p.Tiers {
		if t.MinQuantity < 1 {
			return fmt.Errorf("pricing: tier %q has min quantity %d", t.Label, t.MinQuantity)
		}
		if t.Percentage < 0 || t.Percentage > 100 {
			return fmt.Errorf("pricing: tier %q has percentage %d", t.Label, t.Percentage)
		}
		if _, dup := seen[t.MinQuantity]; dup {
			return fmt.Errorf("pricing: duplicate tier threshold %d", t.MinQuantity)
		}
		seen[t.MinQuantity] = struct{}{}
	}
	return nil
}

// ParseTiers reads a tier table such as "10:15,5:10,2:5". An optional third
// field overrides the generated label: "10:15:Bulk".
func ParseTiers(value string) ([]Tier, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	tiers := make([]Tier, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("pricing: invalid tier %q", part)
		}
		minQty, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("pricing: tier %q min quantity: %w", part, err)
		}
		pct, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("pricing: tier %q percentage: %w", part, err)
		}
		label := fmt.Sprintf("%d+ items", minQty)
		if len(fields) == 3 && strings.TrimSpace(fields[2]) != "" {
			label = strings.TrimSpace(fields[2])
		}
		tiers = append(tiers, Tier{MinQuantity: minQty, Percentage: pct, Label: label})
	}
	return tiers, nil
}
