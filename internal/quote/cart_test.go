package quote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quotedesk/internal/pricing"
)

func TestCartAddMergesSameProductAndSize(t *testing.T) {
	b := testBuilder()
	first, err := b.Build(sizedGate(), BuildOptions{Size: "DN50", Quantity: 2})
	require.NoError(t, err)
	second, err := b.Build(sizedGate(), BuildOptions{Size: "DN50", Quantity: 3, MaterialTestCert: true})
	require.NoError(t, err)
	other, err := b.Build(sizedGate(), BuildOptions{Size: "DN80", Quantity: 1})
	require.NoError(t, err)

	var cart Cart
	_, merged := cart.Add(first)
	require.False(t, merged)
	stored, merged := cart.Add(second)
	require.True(t, merged)
	require.Equal(t, first.ID, stored.ID)
	require.Equal(t, 5, stored.Quantity)
	require.True(t, stored.MaterialTestCert)

	_, merged = cart.Add(other)
	require.False(t, merged)
	require.Len(t, cart.Items, 2)
	require.Equal(t, 6, cart.TotalQuantity())
}

func TestCartNeverMergesCustomLines(t *testing.T) {
	b := testBuilder()
	var cart Cart
	for i := 0; i < 2; i++ {
		item, err := b.Build(straubCoupling(), BuildOptions{Quantity: 1})
		require.NoError(t, err)
		_, merged := cart.Add(item)
		require.False(t, merged)
	}
	require.Len(t, cart.Items, 2)
}

func TestCartUpdateAndRemove(t *testing.T) {
	item, err := testBuilder().Build(flatValve(), BuildOptions{Quantity: 1})
	require.NoError(t, err)
	cart := Cart{Items: []Item{item}}

	require.NoError(t, cart.UpdateQuantity(item.ID, 4))
	require.Equal(t, 4, cart.Items[0].Quantity)
	require.NoError(t, cart.SetCertificate(item.ID, true))
	require.True(t, cart.Items[0].MaterialTestCert)

	require.NoError(t, cart.UpdateQuantity(item.ID, 0))
	require.Empty(t, cart.Items)

	require.ErrorIs(t, cart.UpdateQuantity("missing", 2), ErrItemNotFound)
	require.ErrorIs(t, cart.Remove("missing"), ErrItemNotFound)
	require.ErrorIs(t, cart.SetCertificate("missing", true), ErrItemNotFound)
}

func TestCompareTiers(t *testing.T) {
	engine := pricing.NewDiscountEngine(pricing.DefaultTiers())

	change := CompareTiers(engine, 1, 2)
	require.True(t, change.Unlocked)
	require.Equal(t, 5, change.Tier.Percentage)

	change = CompareTiers(engine, 3, 4)
	require.False(t, change.Unlocked)

	change = CompareTiers(engine, 4, 12)
	require.True(t, change.Unlocked)
	require.Equal(t, 15, change.Tier.Percentage)

	require.False(t, CompareTiers(engine, 6, 3).Unlocked)
}

func TestRedisCartStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := RedisCartStore{R: client, TTL: time.Hour}
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrCartNotFound)

	item, err := testBuilder().Build(sizedGate(), BuildOptions{Size: "DN80", Quantity: 2})
	require.NoError(t, err)
	cart := Cart{ID: "c1", Items: []Item{item}, UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Save(ctx, cart))
	require.Equal(t, time.Hour, mr.TTL("quote:cart:c1"))

	loaded, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, cart.Items, loaded.Items)
	require.Nil(t, loaded.Items[0].UnitPrice())

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "c1")
	require.ErrorIs(t, err, ErrCartNotFound)

	require.NoError(t, store.Save(ctx, cart))
	require.NoError(t, store.Delete(ctx, "c1"))
	_, err = store.Get(ctx, "c1")
	require.ErrorIs(t, err, ErrCartNotFound)
}
