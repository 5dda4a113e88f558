package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

type countingReader struct {
	products map[string]catalog.Product
	calls    int
}

func (r *countingReader) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	r.calls++
	p, ok := r.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedReaderServesFromCache(t *testing.T) {
	mr, client := newRedis(t)
	backing := &countingReader{products: map[string]catalog.Product{
		"p1": {
			ID:          "p1",
			SKU:         "GV-50",
			Name:        "Gate Valve",
			Price:       pricing.Cents(12_500),
			SizeOptions: []catalog.SizeOption{{Value: "50", Label: "50mm", SKU: "GV-50-50"}},
		},
	}}
	reader := catalog.NewCachedReader(backing, catalog.NewCache(client, time.Minute), zerolog.Nop())

	first, err := reader.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	second, err := reader.GetProduct(context.Background(), "p1")
	require.NoError(t, err)

	require.Equal(t, 1, backing.calls)
	require.Equal(t, first, second)
	require.Equal(t, pricing.Money(12_500), *second.Price)

	mr.FastForward(2 * time.Minute)
	_, err = reader.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 2, backing.calls)
}

func TestCachedReaderDoesNotCacheMisses(t *testing.T) {
	_, client := newRedis(t)
	backing := &countingReader{products: map[string]catalog.Product{}}
	reader := catalog.NewCachedReader(backing, catalog.NewCache(client, time.Minute), zerolog.Nop())

	_, err := reader.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	_, err = reader.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	require.Equal(t, 2, backing.calls)
}

func TestCachedReaderSurvivesRedisOutage(t *testing.T) {
	mr, client := newRedis(t)
	backing := &countingReader{products: map[string]catalog.Product{"p1": {ID: "p1"}}}
	reader := catalog.NewCachedReader(backing, catalog.NewCache(client, time.Minute), zerolog.Nop())
	mr.Close()

	p, err := reader.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
}

func TestInvalidateDropsEntry(t *testing.T) {
	_, client := newRedis(t)
	backing := &countingReader{products: map[string]catalog.Product{"p1": {ID: "p1"}}}
	cache := catalog.NewCache(client, time.Minute)
	reader := catalog.NewCachedReader(backing, cache, zerolog.Nop())

	_, err := reader.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background(), "p1"))
	_, err = reader.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 2, backing.calls)
}

func TestProductHelpers(t *testing.T) {
	p := catalog.Product{
		Images:      []catalog.Image{{URL: ""}, {URL: "/img/a.jpg"}},
		SizeOptions: []catalog.SizeOption{{Value: "25"}, {Value: "50"}},
	}
	require.Equal(t, "/img/a.jpg", p.PrimaryImage("/placeholder.svg"))
	require.Equal(t, "/placeholder.svg", catalog.Product{}.PrimaryImage("/placeholder.svg"))
	_, ok := p.FindSize("50")
	require.True(t, ok)
	_, ok = p.FindSize("5")
	require.False(t, ok)
}
