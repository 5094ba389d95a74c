package cmd

import (
	"fmt"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
	"github.com/dineflow/dineflow/pkg/ratelimit"
)

// NewLimiter creates the per-channel rate limiter. A redis URL selects the
// shared counter backend; empty falls back to in-process counters, which is
// only correct for a single worker.
func NewLimiter(redisURL string, emailPerHour, smsPerHour int, jitterMin, jitterMax time.Duration) *ratelimit.Limiter {
	var store ratelimit.CounterStore

	if redisURL != "" {
		redisStore, err := ratelimit.NewRedisStoreFromURL(redisURL)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis: %w", err))
		}

		store = redisStore
	} else {
		store = ratelimit.NewMemoryStore()
	}

	budgets := map[models.Channel]ratelimit.ChannelBudget{
		models.ChannelEmail: {MaxPerHour: emailPerHour, JitterMin: jitterMin, JitterMax: jitterMax},
		models.ChannelSMS:   {MaxPerHour: smsPerHour, JitterMin: jitterMin, JitterMax: jitterMax},
	}

	return ratelimit.NewLimiter(store, budgets)
}
