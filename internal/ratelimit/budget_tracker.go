// Package ratelimit shares upstream API credit budgets across processes using Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/defi-health-scanner/internal/logging"
)

// Default budget configuration values.
const (
	DefaultWindowSize = time.Minute
	DefaultMaxWait    = 30 * time.Second
)

// ErrMaxWaitExceeded is returned when a caller would have to wait longer than MaxWait for credits.
var ErrMaxWaitExceeded = errors.New("credit budget exhausted: max wait exceeded")

// Priority selects how much of a window a caller may spend.
type Priority int

const (
	// PriorityInteractive is for request-path calls.
	PriorityInteractive Priority = iota
	// PriorityBackground is for batch jobs and cannot touch the reservation.
	PriorityBackground
)

// String returns a string representation of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityInteractive:
		return "interactive"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// consumeScript checks and increments the total and pool counters atomically.
var consumeScript = redis.NewScript(`
	local totalKey = KEYS[1]
	local poolKey = KEYS[2]
	local cost = tonumber(ARGV[1])
	local totalBudget = tonumber(ARGV[2])
	local poolBudget = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local totalUsed = tonumber(redis.call('GET', totalKey) or '0')
	local poolUsed = tonumber(redis.call('GET', poolKey) or '0')

	if totalUsed + cost > totalBudget then
		return {0, totalUsed, poolUsed}
	end
	if poolUsed + cost > poolBudget then
		return {0, totalUsed, poolUsed}
	end

	redis.call('INCRBY', totalKey, cost)
	redis.call('EXPIRE', totalKey, ttl)
	redis.call('INCRBY', poolKey, cost)
	redis.call('EXPIRE', poolKey, ttl)

	return {1, totalUsed + cost, poolUsed + cost}
`)

// CreditBudgetConfig holds configuration for a credit budget.
type CreditBudgetConfig struct {
	// Redis is required; the budget is shared by every process pointing at it.
	Redis redis.Cmdable

	// Name scopes the Redis keys, e.g. "coinmarketcap".
	Name string

	// TotalCredits available per window.
	TotalCredits int

	// ReservedCredits background callers may never use. Must not exceed TotalCredits.
	ReservedCredits int

	// WindowSize is the fixed window length. Default: 1m.
	WindowSize time.Duration
}

// Validate checks if the configuration is valid.
func (c *CreditBudgetConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Name == "" {
		return errors.New("budget name is required")
	}
	if c.TotalCredits <= 0 {
		return errors.New("total credits must be positive")
	}
	if c.ReservedCredits < 0 {
		return errors.New("reserved credits cannot be negative")
	}
	if c.ReservedCredits > c.TotalCredits {
		return fmt.Errorf("reserved credits (%d) cannot exceed total credits (%d)", c.ReservedCredits, c.TotalCredits)
	}
	if c.WindowSize < 0 {
		return errors.New("window size cannot be negative")
	}
	return nil
}

// CreditBudget coordinates credit consumption for one upstream across processes.
// Interactive callers may spend the whole window; background callers are held
// to the credits left after the reservation. Both count against the total.
type CreditBudget struct {
	redis    redis.Cmdable
	name     string
	total    int
	reserved int
	window   time.Duration
	keyTTL   time.Duration
}

// Usage is a snapshot of the current window.
type Usage struct {
	TotalUsed       int
	InteractiveUsed int
	BackgroundUsed  int
	TotalCredits    int
	WindowStart     time.Time
}

// NewCreditBudget creates a budget with the given configuration.
func NewCreditBudget(cfg *CreditBudgetConfig) (*CreditBudget, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	window := cfg.WindowSize
	if window == 0 {
		window = DefaultWindowSize
	}

	return &CreditBudget{
		redis:    cfg.Redis,
		name:     cfg.Name,
		total:    cfg.TotalCredits,
		reserved: cfg.ReservedCredits,
		window:   window,
		keyTTL:   2 * window,
	}, nil
}

func (b *CreditBudget) windowStart() time.Time {
	return time.Now().Truncate(b.window)
}

func (b *CreditBudget) keys(start time.Time) (total, interactive, background string) {
	prefix := "credits:" + b.name + ":"
	ts := strconv.FormatInt(start.UnixMilli(), 10)
	return prefix + "total:" + ts, prefix + "interactive:" + ts, prefix + "background:" + ts
}

// TryConsume attempts to take cost credits from the pool matching priority.
// When denied it returns the time until the next window opens.
// A Redis failure denies the request.
func (b *CreditBudget) TryConsume(ctx context.Context, cost int, priority Priority) (bool, time.Duration) {
	if cost <= 0 {
		return true, 0
	}

	start := b.windowStart()
	totalKey, interactiveKey, backgroundKey := b.keys(start)

	poolKey, poolBudget := backgroundKey, b.total-b.reserved
	if priority == PriorityInteractive {
		poolKey, poolBudget = interactiveKey, b.total
	}

	ttl := int(b.keyTTL.Seconds())
	if ttl < 1 {
		ttl = 1
	}

	result, err := consumeScript.Run(ctx, b.redis, []string{totalKey, poolKey},
		cost, b.total, poolBudget, ttl).Int64Slice()
	if err != nil || len(result) == 0 || result[0] != 1 {
		return false, b.untilNextWindow(start)
	}
	return true, 0
}

func (b *CreditBudget) untilNextWindow(start time.Time) time.Duration {
	wait := time.Until(start.Add(b.window))
	if wait < 0 {
		wait = 0
	}
	return wait + time.Millisecond
}

// GetUsage returns the credits consumed in the current window.
func (b *CreditBudget) GetUsage(ctx context.Context) (*Usage, error) {
	start := b.windowStart()
	totalKey, interactiveKey, backgroundKey := b.keys(start)

	pipe := b.redis.Pipeline()
	totalCmd := pipe.Get(ctx, totalKey)
	interactiveCmd := pipe.Get(ctx, interactiveKey)
	backgroundCmd := pipe.Get(ctx, backgroundKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read %s credit usage: %w", b.name, err)
	}

	return &Usage{
		TotalUsed:       intOrZero(totalCmd),
		InteractiveUsed: intOrZero(interactiveCmd),
		BackgroundUsed:  intOrZero(backgroundCmd),
		TotalCredits:    b.total,
		WindowStart:     start,
	}, nil
}

func intOrZero(cmd *redis.StringCmd) int {
	v, err := cmd.Int()
	if err != nil {
		return 0
	}
	return v
}

// Waiter blocks callers of one priority until the budget admits them.
type Waiter struct {
	budget   *CreditBudget
	priority Priority
	cost     int
	maxWait  time.Duration
}

// NewWaiter binds a budget to a fixed per-call cost and priority.
func NewWaiter(budget *CreditBudget, priority Priority, cost int, maxWait time.Duration) *Waiter {
	if cost <= 0 {
		cost = 1
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Waiter{budget: budget, priority: priority, cost: cost, maxWait: maxWait}
}

// Wait returns nil once credits were taken, or an error if the context ends
// or the next window opens later than maxWait from the first attempt.
func (w *Waiter) Wait(ctx context.Context) error {
	started := time.Now()
	deadline := started.Add(w.maxWait)
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"budget":   w.budget.name,
		"priority": w.priority.String(),
		"cost":     w.cost,
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		allowed, wait := w.budget.TryConsume(ctx, w.cost, w.priority)
		if allowed {
			return nil
		}

		if time.Now().Add(wait).After(deadline) {
			logger.WithField("waited", time.Since(started).String()).Warn("credit budget max wait exceeded")
			return ErrMaxWaitExceeded
		}

		logger.WithField("wait", wait.String()).Debug("waiting for credit budget")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
