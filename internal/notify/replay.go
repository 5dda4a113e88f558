package notify

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DeliveryGuard records emails already handed to the provider so a task
// retried after a successful send does not email the customer twice.
type DeliveryGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisDeliveryGuard implements DeliveryGuard with SETNX.
type RedisDeliveryGuard struct {
	Client redis.UniversalClient
	Prefix string
}

// Acquire claims key for ttl. It reports false when the key is already held.
func (g RedisDeliveryGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g.Client == nil {
		return true, nil
	}
	return g.Client.SetNX(ctx, g.Prefix+key, "1", ttl).Result()
}

// Release frees key so a later attempt can send.
func (g RedisDeliveryGuard) Release(ctx context.Context, key string) error {
	if g.Client == nil {
		return nil
	}
	return g.Client.Del(ctx, g.Prefix+key).Err()
}
