package quote

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

func TestResolveFlatProduct(t *testing.T) {
	src, err := testResolver().Resolve(flatValve(), "")
	require.NoError(t, err)
	flat, ok := src.(Flat)
	require.True(t, ok, "expected Flat, got %T", src)
	require.Equal(t, "VALVE-100", flat.SKU)
	require.Equal(t, pricing.Money(10_000), *flat.Price)
}

func TestResolvePriceVariesRequiresSize(t *testing.T) {
	_, err := testResolver().Resolve(sizedGate(), "")
	require.ErrorIs(t, err, ErrSizeRequired)
}

func TestResolvePriceVariesUnknownSize(t *testing.T) {
	_, err := testResolver().Resolve(sizedGate(), "DN999")
	require.ErrorIs(t, err, ErrInvalidSize)
	require.Contains(t, err.Error(), "DN999")
}

func TestResolvePriceVariesUsesOption(t *testing.T) {
	src, err := testResolver().Resolve(sizedGate(), "DN50")
	require.NoError(t, err)
	v := src.(Variation)
	require.Equal(t, "DN50", v.Size)
	require.Equal(t, "50mm", v.SizeLabel)
	require.Equal(t, "GATE-50", v.SKU)
	require.Equal(t, pricing.Money(5_000), *v.UnitPrice)
}

func TestResolvePriceVariesMissingOptionPriceIsPOA(t *testing.T) {
	src, err := testResolver().Resolve(sizedGate(), "DN80")
	require.NoError(t, err)
	v := src.(Variation)
	require.Nil(t, v.UnitPrice, "product price must not leak into a variable-price option")
	require.Equal(t, "GATE", v.SKU, "sku falls back to the product sku")
}

func TestResolveSizeMatchIsExact(t *testing.T) {
	_, err := testResolver().Resolve(sizedGate(), "dn50")
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestResolveCustomBrandIgnoresSize(t *testing.T) {
	p := straubCoupling()
	p.Brand = "STRAUB"
	src, err := testResolver().Resolve(p, "anything")
	require.NoError(t, err)
	custom, ok := src.(CustomSpecs)
	require.True(t, ok)
	require.Equal(t, "STRAUB-GRIP", custom.SKU)
}

func TestResolveSingleOptionFlatProduct(t *testing.T) {
	p := flatValve()
	p.SizeOptions = []catalog.SizeOption{{Value: "DN100", Label: "100mm"}}

	src, err := testResolver().Resolve(p, "")
	require.NoError(t, err)
	v := src.(Variation)
	require.Equal(t, "DN100", v.Size)
	require.Equal(t, "VALVE-100", v.SKU)
	require.Equal(t, pricing.Money(10_000), *v.UnitPrice, "price falls back to the product price")

	_, err = testResolver().Resolve(p, "DN150")
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestResolveMultiOptionFlatProduct(t *testing.T) {
	p := flatValve()
	p.SizeOptions = []catalog.SizeOption{
		{Value: "S", Label: "Small", Price: pricing.Cents(8_000)},
		{Value: "L", Label: "Large"},
	}

	src, err := testResolver().Resolve(p, "")
	require.NoError(t, err)
	require.IsType(t, Flat{}, src)

	src, err = testResolver().Resolve(p, "S")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(8_000), *src.(Variation).UnitPrice)

	src, err = testResolver().Resolve(p, "L")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(10_000), *src.(Variation).UnitPrice)
}

func TestResolvePriceVariesWithoutOptionsRequiresSize(t *testing.T) {
	p := flatValve()
	p.PriceVaries = true
	_, err := testResolver().Resolve(p, "")
	require.ErrorIs(t, err, ErrSizeRequired)
}

func TestResolvePriceVariesWithoutOptionsRejectsAnySize(t *testing.T) {
	p := flatValve()
	p.PriceVaries = true
	_, err := testResolver().Resolve(p, "DN999")
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestResolveDoesNotAliasCatalogPrices(t *testing.T) {
	p := flatValve()
	src, err := testResolver().Resolve(p, "")
	require.NoError(t, err)
	*src.(Flat).Price = 1
	require.Equal(t, pricing.Money(10_000), *p.Price)
}
