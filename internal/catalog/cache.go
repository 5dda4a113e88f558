package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate drops the cached copy of a product.
func (c *Cache) Invalidate(ctx context.Context, productID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, productCacheKey(productID)).Err()
}

// CachedReader serves products from Redis before falling back to the next Reader.
// Cache failures are logged and never fail the read.
type CachedReader struct {
	next   Reader
	cache  *Cache
	logger zerolog.Logger
}

// NewCachedReader wraps next with a read-through cache.
func NewCachedReader(next Reader, cache *Cache, logger zerolog.Logger) *CachedReader {
	return &CachedReader{next: next, cache: cache, logger: logger}
}

// GetProduct implements Reader.
func (r *CachedReader) GetProduct(ctx context.Context, id string) (Product, error) {
	key := productCacheKey(id)
	var cached Product
	ok, err := r.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		r.logger.Warn().Err(err).Str("product_id", id).Msg("catalog cache read failed")
	}
	if ok {
		return cached, nil
	}
	product, err := r.next.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := r.cache.SetJSON(ctx, key, product); err != nil {
		r.logger.Warn().Err(err).Str("product_id", id).Msg("catalog cache write failed")
	}
	return product, nil
}

func productCacheKey(id string) string {
	return "catalog:products:quote:" + id
}
