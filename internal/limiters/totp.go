package limiters

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/redis/go-redis/v9"
)

// ErrTOTPUnavailable wraps Redis failures raised by [TOTPLimiter].
var ErrTOTPUnavailable = fmt.Errorf("%w: totp limiter backend", autherr.ErrServiceUnavailable)

// TOTPLimiterConfig tunes [TOTPLimiter]. Zero fields fall back to 5 wrong
// codes per user per minute.
type TOTPLimiterConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// TOTPLimiter counts wrong authenticator-app codes per user across all of
// the user's TOTP methods.
type TOTPLimiter struct {
	budget failureBudget
}

// NewTOTPLimiter creates a TOTP limiter backed by redisClient.
func NewTOTPLimiter(redisClient redis.UniversalClient, cfg TOTPLimiterConfig) *TOTPLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &TOTPLimiter{budget: failureBudget{
		redis:       redisClient,
		prefix:      "tat:",
		max:         int64(cfg.MaxAttempts),
		window:      cfg.Cooldown,
		reason:      "too many totp attempts",
		unavailable: ErrTOTPUnavailable,
	}}
}

// Check rejects a user whose budget is exhausted.
func (l *TOTPLimiter) Check(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return l.budget.check(ctx, userID)
}

// RecordFailure counts a wrong code and reports the lockout it triggers.
func (l *TOTPLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return l.budget.record(ctx, userID)
}

// Reset clears the counter after a successful verification.
func (l *TOTPLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return l.budget.reset(ctx, userID)
}
