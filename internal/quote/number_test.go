package quote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisNumbererSequencesPerYear(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	n := RedisNumberer{R: client, Prefix: "QD"}
	ctx := context.Background()

	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	first, err := n.Next(ctx, jan)
	require.NoError(t, err)
	second, err := n.Next(ctx, jan)
	require.NoError(t, err)
	next, err := n.Next(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Equal(t, "QD-2025-000001", first)
	require.Equal(t, "QD-2025-000002", second)
	require.Equal(t, "QD-2026-000001", next)
}

func TestRedisNumbererWithoutClient(t *testing.T) {
	_, err := RedisNumberer{}.Next(context.Background(), time.Now())
	require.Error(t, err)
}

func TestFormatNumberDefaultsPrefix(t *testing.T) {
	require.Equal(t, "Q-2025-000042", FormatNumber(" ", 2025, 42))
}
