package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Numberer allocates human-readable quote numbers.
type Numberer interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// RedisNumberer allocates PREFIX-YYYY-NNNNNN numbers from a yearly counter.
type RedisNumberer struct {
	R      *redis.Client
	Prefix string
}

// Next increments the counter for at's year.
func (n RedisNumberer) Next(ctx context.Context, at time.Time) (string, error) {
	if n.R == nil {
		return "", fmt.Errorf("quote: numberer redis client not configured")
	}
	year := at.Year()
	seq, err := n.R.Incr(ctx, fmt.Sprintf("quote:seq:%d", year)).Result()
	if err != nil {
		return "", fmt.Errorf("quote: allocate number: %w", err)
	}
	return FormatNumber(n.Prefix, year, seq), nil
}

// FormatNumber renders a quote number.
func FormatNumber(prefix string, year int, seq int64) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "Q"
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}
