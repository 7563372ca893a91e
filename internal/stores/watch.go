package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 4

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = fmt.Errorf("%w: redis unavailable", autherr.ErrServiceUnavailable)

var errContention = fmt.Errorf("%w: watched key kept changing", autherr.ErrServiceUnavailable)

// rejection carries a domain outcome out of a WATCH callback.
type rejection struct{ err error }

func (r rejection) Error() string { return r.err.Error() }

func reject(err error) error { return rejection{err: err} }

// watchKey runs fn inside WATCH key / MULTI / EXEC and retries when another
// client changed key in between. fn queues its writes with tx.TxPipelined so
// they apply only while key is untouched.
//
// Errors fn wraps with reject reach the caller as-is; anything else is a Redis
// failure and comes back wrapped in ErrRedisUnavailable.
func watchKey(ctx context.Context, rdb redis.UniversalClient, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := rdb.Watch(ctx, fn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var r rejection
		if errors.As(err, &r) {
			return r.err
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return errContention
}

// deleteIn queues a DEL of key inside tx.
func deleteIn(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	return err
}
