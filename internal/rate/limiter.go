package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// Limiter enforces per-identifier and per-IP budgets for failed logins and a
// per-session budget for refreshes, using fixed-window Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, config: cfg}
}

// loginKeys returns the counters a login attempt is charged to.
func (l *Limiter) loginKeys(identifier, ip string) []string {
	keys := []string{loginKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	return keys
}

// CheckLogin rejects identifier (a phone, email or credential id) and ip
// once either has used up its failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	keys := l.loginKeys(identifier, ip)
	values, err := l.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	for i, v := range values {
		if counterValue(v) >= int64(l.config.MaxLoginAttempts) {
			return l.limited(ctx, keys[i], l.config.LoginCooldownDuration)
		}
	}
	return nil
}

// IncrementLogin records a failed login for identifier and ip.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(identifier, ip) {
		if _, err := Hit(ctx, l.redis, key, l.config.LoginCooldownDuration); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is left to expire so one good login cannot launder a spraying IP.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, loginKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts one refresh for sessionID and rejects it once the
// session refreshed more than MaxRefreshAttempts times in the window.
func (l *Limiter) CheckRefresh(ctx context.Context, sessionID string) error {
	if l == nil || !l.config.EnableRefreshThrottle {
		return nil
	}
	key := refreshKey(sessionID)
	count, err := Hit(ctx, l.redis, key, l.config.RefreshCooldownDuration)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return l.limited(ctx, key, l.config.RefreshCooldownDuration)
	}
	return nil
}

// LoginAttempts returns the current failure counter for identifier.
func (l *Limiter) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(identifier)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(count, 0)), nil
}

// limited builds a RateLimitError whose RetryAfter is the remaining window.
func (l *Limiter) limited(ctx context.Context, key string, window time.Duration) error {
	retry := window
	if ttl, err := l.redis.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		retry = ttl
	}
	return &autherr.RateLimitError{RetryAfter: retry, Reason: ErrRateLimited.Error()}
}

// counterValue reads one MGET slot; missing or malformed counters are zero.
func counterValue(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
