// Package ratelimit enforces per-channel send budgets over rolling hour
// windows, with randomized jitter between consecutive sends. Counters live in
// a CounterStore with atomic increments so concurrent executions racing for
// the last slot in a window cannot lose updates.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dineflow/dineflow/pkg/models"
)

// Window is the budget accounting period.
const Window = time.Hour

// CounterStore is the shared counter backend. Incr atomically increments the
// counter for key and returns the post-increment value; expiry bounds how long
// an idle counter must be retained.
type CounterStore interface {
	Incr(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// ChannelBudget configures one channel's throttle.
type ChannelBudget struct {
	MaxPerHour int
	// JitterMin/JitterMax bound the advisory inter-send delay. Zero values
	// disable jitter.
	JitterMin time.Duration
	JitterMax time.Duration
}

// Reservation is the outcome of a slot request. A deferred reservation means
// the hourly budget is exhausted: the caller should suspend until RetryAt
// (the start of the next window) instead of sending.
type Reservation struct {
	Deferred bool
	RetryAt  time.Time
	// Wait is the advisory jitter before the send; scheduling granularity,
	// not a correctness requirement.
	Wait time.Duration
}

// Limiter reserves send slots per channel.
type Limiter struct {
	store   CounterStore
	budgets map[models.Channel]ChannelBudget

	mu   sync.Mutex
	rand *rand.Rand
}

// NewLimiter creates a limiter over the given store and per-channel budgets.
func NewLimiter(store CounterStore, budgets map[models.Channel]ChannelBudget) *Limiter {
	return &Limiter{
		store:   store,
		budgets: budgets,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Reserve requests a send slot on the channel at now. Channels without a
// configured budget are unlimited.
func (l *Limiter) Reserve(ctx context.Context, channel models.Channel, now time.Time) (Reservation, error) {
	budget, ok := l.budgets[channel]
	if !ok || budget.MaxPerHour <= 0 {
		return Reservation{}, nil
	}

	windowStart := now.UTC().Truncate(Window)
	key := fmt.Sprintf("ratelimit:%s:%d", channel, windowStart.Unix())

	// Counters expire two windows out so a late scheduler run still sees them.
	count, err := l.store.Incr(ctx, key, 2*Window)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to reserve %s slot: %w", channel, err)
	}

	if count > int64(budget.MaxPerHour) {
		return Reservation{
			Deferred: true,
			RetryAt:  windowStart.Add(Window),
		}, nil
	}

	return Reservation{Wait: l.jitter(budget)}, nil
}

func (l *Limiter) jitter(budget ChannelBudget) time.Duration {
	if budget.JitterMax <= 0 || budget.JitterMax < budget.JitterMin {
		return 0
	}

	span := budget.JitterMax - budget.JitterMin
	if span == 0 {
		return budget.JitterMin
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return budget.JitterMin + time.Duration(l.rand.Int63n(int64(span)))
}
