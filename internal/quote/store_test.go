package quote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConsumeMissClassifiesUntouchedRow(t *testing.T) {
	now := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	sent := Quote{
		Status:         StatusSent,
		ExpiresAt:      ExpiryOf(now),
		TokenHash:      HashToken("tok"),
		TokenExpiresAt: now.Add(time.Hour),
	}

	require.ErrorIs(t, consumeMiss(Quote{}, ErrTokenNotFound, now), ErrTokenNotFound)
	require.ErrorIs(t, consumeMiss(Quote{}, ErrStoreUnavailable, now), ErrStoreUnavailable)

	decided := sent
	decided.Status = StatusRejected
	require.ErrorIs(t, consumeMiss(decided, nil, now), ErrTokenAlreadyConsumed)

	lapsed := sent
	lapsed.TokenExpiresAt = now
	require.ErrorIs(t, consumeMiss(lapsed, nil, now), ErrTokenExpired)

	expired := sent
	expired.Status = StatusExpired
	require.ErrorIs(t, consumeMiss(expired, nil, now), ErrTokenExpired)

	// still consumable when read back: another request decided it first
	require.ErrorIs(t, consumeMiss(sent, nil, now), ErrTokenAlreadyConsumed)
}

func TestPgStoreWithoutPoolIsUnavailable(t *testing.T) {
	var s *pgStore
	_, err := s.ConsumeToken(context.Background(), HashToken("tok"), StatusApproved, "", time.Now())
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
