package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filmforge/academy/internal/platform/apperr"
)

// BudgetChecker checks and records per-user daily token usage.
type BudgetChecker interface {
	// Check returns ErrQuotaExhausted once the user's budget for today is
	// spent.
	Check(ctx context.Context, userID string) error
	// Record adds token usage for the user.
	Record(ctx context.Context, userID string, tokens int) error
	// Usage returns today's usage and the limit; a zero limit is unlimited.
	Usage(ctx context.Context, userID string) (used, limit int64, err error)
}

// UnlimitedBudget never refuses and records nothing.
type UnlimitedBudget struct{}

func (UnlimitedBudget) Check(context.Context, string) error       { return nil }
func (UnlimitedBudget) Record(context.Context, string, int) error { return nil }
func (UnlimitedBudget) Usage(context.Context, string) (int64, int64, error) {
	return 0, 0, nil
}

func validTokens(tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	return nil
}

func budgetKey(userID string, day time.Time) string {
	return "ai:budget:" + userID + ":" + day.UTC().Format("20060102")
}

func exhausted(userID string, used, limit int64) error {
	return apperr.Wrap(apperr.KindQuotaExhausted, ErrQuotaExhausted.Msg,
		fmt.Errorf("user %s used %d of %d tokens", userID, used, limit))
}

// InMemoryBudget is a process-local budget tracker for development and tests.
type InMemoryBudget struct {
	mu    sync.RWMutex
	limit int64
	usage map[string]int64 // budgetKey -> tokens used
	now   func() time.Time
}

// NewInMemoryBudget creates a tracker with the given daily per-user limit;
// zero means unlimited.
func NewInMemoryBudget(limit int64) *InMemoryBudget {
	return &InMemoryBudget{
		limit: limit,
		usage: make(map[string]int64),
		now:   time.Now,
	}
}

// SetClock overrides the time source used to bucket usage by day.
func (b *InMemoryBudget) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *InMemoryBudget) Check(_ context.Context, userID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.limit <= 0 {
		return nil
	}
	if used := b.usage[budgetKey(userID, b.now())]; used >= b.limit {
		return exhausted(userID, used, b.limit)
	}
	return nil
}

func (b *InMemoryBudget) Record(_ context.Context, userID string, tokens int) error {
	if err := validTokens(tokens); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[budgetKey(userID, b.now())] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, userID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[budgetKey(userID, b.now())], b.limit, nil
}

// Counters is the subset of the Redis cache the budget needs.
type Counters interface {
	IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)
	Counter(ctx context.Context, key string) (int64, error)
}

// RedisBudget tracks usage in shared counters so every replica sees the same
// totals. Keys expire two days after first use.
type RedisBudget struct {
	counters Counters
	limit    int64
	now      func() time.Time
}

// NewRedisBudget creates a tracker backed by counters.
func NewRedisBudget(counters Counters, limit int64) *RedisBudget {
	return &RedisBudget{counters: counters, limit: limit, now: time.Now}
}

func (b *RedisBudget) Check(ctx context.Context, userID string) error {
	if b.limit <= 0 {
		return nil
	}
	used, err := b.counters.Counter(ctx, budgetKey(userID, b.now()))
	if err != nil {
		return fmt.Errorf("read token budget: %w", err)
	}
	if used >= b.limit {
		return exhausted(userID, used, b.limit)
	}
	return nil
}

func (b *RedisBudget) Record(ctx context.Context, userID string, tokens int) error {
	if err := validTokens(tokens); err != nil {
		return err
	}
	if tokens == 0 {
		return nil
	}
	if _, err := b.counters.IncrBy(ctx, budgetKey(userID, b.now()), int64(tokens), 48*time.Hour); err != nil {
		return fmt.Errorf("record token usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, userID string) (int64, int64, error) {
	used, err := b.counters.Counter(ctx, budgetKey(userID, b.now()))
	if err != nil {
		return 0, 0, fmt.Errorf("read token budget: %w", err)
	}
	return used, b.limit, nil
}
