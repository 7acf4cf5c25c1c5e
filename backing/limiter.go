package backing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is returned by [Limiter.Allow] when the attempt budget for
// an identifier is exhausted.
var ErrRateLimited = errors.New("rate limited")

const limiterKeyspace = "rl:"

// FailurePolicy decides what [Limiter.Allow] does when the backing store is
// unreachable. The source system propagated the error to the caller; that
// remains the default, with fail-open and fail-closed as explicit choices.
type FailurePolicy int

const (
	// FailError propagates the outage to the caller.
	FailError FailurePolicy = iota
	// FailOpen admits the request when the counter cannot be read.
	FailOpen
	// FailClosed denies the request when the counter cannot be read,
	// preserving the limiter's purpose at the cost of availability.
	FailClosed
)

// LimiterConfig holds rate limiter tuning parameters.
type LimiterConfig struct {
	MaxAttempts int
	Window      time.Duration
	Policy      FailurePolicy
}

// Limiter enforces per-identifier fixed-window rate limits using backing
// store counters.
type Limiter struct {
	store  *Store
	config LimiterConfig
}

// NewLimiter creates a [Limiter] over store.
func NewLimiter(store *Store, cfg LimiterConfig) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{store: store, config: cfg}
}

// Allow records an attempt for id and returns [ErrRateLimited] once the
// window budget is exceeded. Backing store outages are resolved by the
// configured [FailurePolicy].
func (l *Limiter) Allow(ctx context.Context, id string) error {
	count, err := l.store.Incr(ctx, limiterKeyspace+id, l.config.Window)
	if err != nil {
		switch l.config.Policy {
		case FailOpen:
			l.store.warnf("backing: limiter failing open for %q: %v", id, err)
			return nil
		case FailClosed:
			l.store.warnf("backing: limiter failing closed for %q: %v", id, err)
			return fmt.Errorf("%w: backing store unreachable", ErrRateLimited)
		default:
			return err
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the attempt counter for id.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	_, err := l.store.Delete(ctx, limiterKeyspace+id)
	return err
}

// Attempts returns the current window's attempt count for id. Missing
// counters return zero.
func (l *Limiter) Attempts(ctx context.Context, id string) (int, error) {
	count, err := l.store.GetInt(ctx, limiterKeyspace+id)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
