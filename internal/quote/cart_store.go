package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CartStore persists in-progress carts.
type CartStore interface {
	Get(ctx context.Context, id string) (Cart, error)
	Save(ctx context.Context, cart Cart) error
	Delete(ctx context.Context, id string) error
}

// RedisCartStore keeps carts as JSON documents that expire after TTL of inactivity.
type RedisCartStore struct {
	R   *redis.Client
	TTL time.Duration
}

func (s RedisCartStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func cartKey(id string) string {
	return "quote:cart:" + id
}

// Get loads a cart.
func (s RedisCartStore) Get(ctx context.Context, id string) (Cart, error) {
	if s.R == nil {
		return Cart{}, errors.New("quote: cart store not configured")
	}
	data, err := s.R.Get(ctx, cartKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, fmt.Errorf("quote: load cart: %w", err)
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return Cart{}, fmt.Errorf("quote: decode cart: %w", err)
	}
	return cart, nil
}

// Save writes the cart and refreshes its TTL.
func (s RedisCartStore) Save(ctx context.Context, cart Cart) error {
	if s.R == nil {
		return errors.New("quote: cart store not configured")
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("quote: encode cart: %w", err)
	}
	return s.R.Set(ctx, cartKey(cart.ID), data, s.ttl()).Err()
}

// Delete removes the cart.
func (s RedisCartStore) Delete(ctx context.Context, id string) error {
	if s.R == nil {
		return errors.New("quote: cart store not configured")
	}
	return s.R.Del(ctx, cartKey(id)).Err()
}
