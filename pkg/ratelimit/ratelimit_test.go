package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineflow/dineflow/pkg/models"
)

func TestLimiter_ReserveWithinBudget(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), map[models.Channel]ChannelBudget{
		models.ChannelEmail: {MaxPerHour: 3},
	})

	now := time.Date(2026, 3, 10, 14, 20, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		reservation, err := limiter.Reserve(context.Background(), models.ChannelEmail, now)
		require.NoError(t, err)
		assert.False(t, reservation.Deferred, "send %d should fit the budget", i+1)
	}
}

func TestLimiter_ReserveDefersOverBudget(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), map[models.Channel]ChannelBudget{
		models.ChannelSMS: {MaxPerHour: 2},
	})

	now := time.Date(2026, 3, 10, 14, 20, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		reservation, err := limiter.Reserve(ctx, models.ChannelSMS, now)
		require.NoError(t, err)
		require.False(t, reservation.Deferred)
	}

	reservation, err := limiter.Reserve(ctx, models.ChannelSMS, now)
	require.NoError(t, err)
	assert.True(t, reservation.Deferred)
	assert.Equal(t, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), reservation.RetryAt)
}

func TestLimiter_NewWindowResetsBudget(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), map[models.Channel]ChannelBudget{
		models.ChannelEmail: {MaxPerHour: 1},
	})

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 14, 59, 0, 0, time.UTC)

	reservation, err := limiter.Reserve(ctx, models.ChannelEmail, now)
	require.NoError(t, err)
	require.False(t, reservation.Deferred)

	reservation, err = limiter.Reserve(ctx, models.ChannelEmail, now)
	require.NoError(t, err)
	require.True(t, reservation.Deferred)

	// Counters are keyed by window start, so the next hour starts fresh.
	reservation, err = limiter.Reserve(ctx, models.ChannelEmail, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, reservation.Deferred)
}

func TestLimiter_UnconfiguredChannelIsUnlimited(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), map[models.Channel]ChannelBudget{})

	for i := 0; i < 50; i++ {
		reservation, err := limiter.Reserve(context.Background(), models.ChannelEmail, time.Now())
		require.NoError(t, err)
		assert.False(t, reservation.Deferred)
		assert.Zero(t, reservation.Wait)
	}
}

func TestLimiter_JitterBounds(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), map[models.Channel]ChannelBudget{
		models.ChannelEmail: {
			MaxPerHour: 1000,
			JitterMin:  2 * time.Second,
			JitterMax:  10 * time.Second,
		},
	})

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		reservation, err := limiter.Reserve(context.Background(), models.ChannelEmail, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, reservation.Wait, 2*time.Second)
		assert.Less(t, reservation.Wait, 10*time.Second)
	}
}

func TestMemoryStore_Incr(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "ratelimit:email:100", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Independent keys do not share counters.
	got, err := store.Incr(ctx, "ratelimit:sms:100", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestMemoryStore_IncrExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Incr(ctx, "ratelimit:email:100", -time.Second)
	require.NoError(t, err)

	// The previous counter already expired, so the count starts over.
	got, err := store.Incr(ctx, "ratelimit:email:100", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}
