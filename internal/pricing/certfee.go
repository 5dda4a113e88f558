package pricing

import "github.com/shopspring/decimal"

// Line is the pricing view of one quote line.
type Line struct {
	SKU              string
	Quantity         int
	UnitPrice        *Money // nil means price on application
	MaterialTestCert bool
}

// CertifiedSKUCount counts distinct SKUs with a material test certificate.
// Line quantity is irrelevant: the certificate is per SKU, not per unit.
func CertifiedSKUCount(lines []Line) int {
	seen := make(map[string]struct{})
	for _, l := range lines {
		if !l.MaterialTestCert {
			continue
		}
		seen[l.SKU] = struct{}{}
	}
	return len(seen)
}

// CertFee returns the total certification fee and the number of SKUs charged.
func CertFee(lines []Line, feePerSKU Money) (decimal.Decimal, int) {
	count := CertifiedSKUCount(lines)
	return FromCents(feePerSKU).Mul(decimal.NewFromInt(int64(count))), count
}
