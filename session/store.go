package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = fmt.Errorf("%w: redis unavailable", autherr.ErrServiceUnavailable)

// ErrSessionCorrupt is returned when a stored blob does not decode.
var ErrSessionCorrupt = errors.New("session corrupt")

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// RedisStore is the Redis [Backend]. Each session lives under its own key
// with a TTL matching ExpiresAt; a per-user set indexes session ids.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a [RedisStore]. prefix sets the key namespace.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ts"
	}
	return &RedisStore{redis: rdb, prefix: prefix, now: time.Now}
}

// WithClock overrides the clock used for expiry checks.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Save persists sess with a TTL running until sess.ExpiresAt.
func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return autherr.Validation("session already expired")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a live session.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, fmt.Errorf("session %s: %w", sessionID, autherr.ErrNotFound)
		}
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.decodeLive(ctx, sessionID, data)
}

// Touch stamps LastAccessedAt without changing the TTL. A session deleted
// concurrently is not recreated.
func (s *RedisStore) Touch(ctx context.Context, sessionID string, at time.Time) (Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	sess.LastAccessedAt = at
	data, err := Encode(sess)
	if err != nil {
		return Session{}, err
	}
	err = s.redis.SetArgs(ctx, s.key(sessionID), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, fmt.Errorf("session %s: %w", sessionID, autherr.ErrNotFound)
		}
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sess, nil
}

// Delete removes a session and its index entry. Deleting a missing session
// is not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess, err := Decode(data)
	if err != nil {
		if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}
	return s.deleteSessionAndIndex(ctx, sess.UserID, sessionID)
}

// DeleteAllForUser removes every session of userID and returns how many
// were still live.
//
// It reads the user's index, counts the keys that still exist, then deletes
// them in one transaction. A session saved between the read and the delete
// survives; it is caught by the next call or expires on its own.
func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}

	existing, err := s.redis.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(existing), nil
}

// ListForUser returns the live sessions of userID. Index entries whose
// session already expired are pruned.
func (s *RedisStore) ListForUser(ctx context.Context, userID string) ([]Session, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := s.now()
	sessions := make([]Session, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		sess, decErr := Decode(data)
		if decErr != nil || sess.Expired(now) {
			stale = append(stale, ids[i])
			continue
		}
		sess.SessionID = ids[i]
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return sessions, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *RedisStore) decodeLive(ctx context.Context, sessionID string, data []byte) (Session, error) {
	sess, err := Decode(data)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.SessionID = sessionID
	if sess.Expired(s.now()) {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, sessionID); err != nil {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("session %s expired: %w", sessionID, autherr.ErrNotFound)
	}
	return sess, nil
}

func (s *RedisStore) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	keys := []string{s.key(sessionID), s.userKey(userID)}
	if _, err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

var _ Backend = (*RedisStore)(nil)
