package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/internal/rate"
	"github.com/redis/go-redis/v9"
)

// failureBudget is a fixed-window failure counter: the window opens on the
// first failure and the subject is locked once max failures are recorded.
type failureBudget struct {
	redis       redis.UniversalClient
	prefix      string
	max         int64
	window      time.Duration
	reason      string
	unavailable error
}

func (b failureBudget) key(subject string) string {
	return b.prefix + subject
}

func (b failureBudget) check(ctx context.Context, subject string) error {
	count, err := b.redis.Get(ctx, b.key(subject)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", b.unavailable, err)
	case count >= b.max:
		return b.limited(ctx, subject)
	}
	return nil
}

func (b failureBudget) record(ctx context.Context, subject string) error {
	count, err := rate.Hit(ctx, b.redis, b.key(subject), b.window)
	if err != nil {
		return fmt.Errorf("%w: %v", b.unavailable, err)
	}
	if count >= b.max {
		return b.limited(ctx, subject)
	}
	return nil
}

func (b failureBudget) reset(ctx context.Context, subject string) error {
	if err := b.redis.Del(ctx, b.key(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", b.unavailable, err)
	}
	return nil
}

// limited reports the remaining lockout, falling back to the full window
// when the TTL cannot be read.
func (b failureBudget) limited(ctx context.Context, subject string) error {
	retry := b.window
	if ttl, err := b.redis.PTTL(ctx, b.key(subject)).Result(); err == nil && ttl > 0 {
		retry = ttl
	}
	return &autherr.RateLimitError{RetryAfter: retry, Reason: b.reason}
}
