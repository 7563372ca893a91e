package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/otp"
	"github.com/MrEthical07/goTrust/passkey"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testChallenge(value string, typ passkey.ChallengeType) passkey.Challenge {
	return passkey.Challenge{
		Value:     value,
		Type:      typ,
		UserID:    "u-1",
		UserName:  "ada",
		IssuedAt:  t0,
		ExpiresAt: t0.Add(5 * time.Minute),
	}
}

func TestChallengeConsumedOnce(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewChallengeStore(rdb, "")
	ctx := context.Background()

	if err := store.Put(ctx, testChallenge("abc", passkey.ChallengeRegistration)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := mr.TTL("tpc:abc"); ttl != 5*time.Minute {
		t.Fatalf("expected 5m ttl, got %v", ttl)
	}

	got, err := store.Consume(ctx, "abc", passkey.ChallengeRegistration, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.UserID != "u-1" || got.UserName != "ada" || got.Value != "abc" {
		t.Fatalf("unexpected challenge %+v", got)
	}

	_, err = store.Consume(ctx, "abc", passkey.ChallengeRegistration, t0.Add(time.Minute))
	if !errors.Is(err, autherr.ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid on reuse, got %v", err)
	}
}

func TestChallengeTypeMismatchKeepsRecord(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewChallengeStore(rdb, "")
	ctx := context.Background()

	if err := store.Put(ctx, testChallenge("abc", passkey.ChallengeRegistration)); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := store.Consume(ctx, "abc", passkey.ChallengeAuthentication, t0)
	if !errors.Is(err, autherr.ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid, got %v", err)
	}
	if _, err := store.Consume(ctx, "abc", passkey.ChallengeRegistration, t0); err != nil {
		t.Fatalf("record should survive a type mismatch: %v", err)
	}
}

func TestChallengeExpiredIsRemoved(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewChallengeStore(rdb, "")
	ctx := context.Background()

	if err := store.Put(ctx, testChallenge("abc", passkey.ChallengeAuthentication)); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := store.Consume(ctx, "abc", passkey.ChallengeAuthentication, t0.Add(6*time.Minute))
	if !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if mr.Exists("tpc:abc") {
		t.Fatal("expired challenge should be deleted")
	}
}

func TestChallengeConcurrentConsumeSingleWinner(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewChallengeStore(rdb, "")
	ctx := context.Background()

	if err := store.Put(ctx, testChallenge("race", passkey.ChallengeAuthentication)); err != nil {
		t.Fatalf("put: %v", err)
	}

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "race", passkey.ChallengeAuthentication, t0); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestCodeStoreLifecycle(t *testing.T) {
	mr, rdb := newRedis(t)
	store := NewCodeStore(rdb, "").WithClock(func() time.Time { return t0 })
	ctx := context.Background()

	digest := otp.Digest("m-1", "123456")
	rec := otp.CodeRecord{MethodID: "m-1", Digest: digest, ExpiresAt: t0.Add(5 * time.Minute), MaxAttempts: 3}
	if err := store.SaveCode(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := store.ConsumeCode(ctx, "m-1", otp.Digest("m-1", "000000"), t0); !errors.Is(err, autherr.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if ttl := mr.TTL("toc:m-1"); ttl <= 0 {
		t.Fatalf("mismatch must keep the ttl, got %v", ttl)
	}

	got, err := store.ConsumeCode(ctx, "m-1", digest, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d", got.Attempts)
	}
	if _, err := store.ConsumeCode(ctx, "m-1", digest, t0.Add(time.Minute)); !errors.Is(err, autherr.ErrInvalidCredential) {
		t.Fatalf("code must be single use, got %v", err)
	}
}

func TestCodeStoreAttemptCap(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewCodeStore(rdb, "").WithClock(func() time.Time { return t0 })
	ctx := context.Background()

	digest := otp.Digest("m-1", "123456")
	if err := store.SaveCode(ctx, otp.CodeRecord{MethodID: "m-1", Digest: digest, ExpiresAt: t0.Add(time.Minute), MaxAttempts: 3}); err != nil {
		t.Fatalf("save: %v", err)
	}
	wrong := otp.Digest("m-1", "999999")
	for i := 0; i < 2; i++ {
		if _, err := store.ConsumeCode(ctx, "m-1", wrong, t0); !errors.Is(err, autherr.ErrInvalidCredential) {
			t.Fatalf("attempt %d: expected ErrInvalidCredential, got %v", i+1, err)
		}
	}
	if _, err := store.ConsumeCode(ctx, "m-1", wrong, t0); !errors.Is(err, autherr.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on third miss, got %v", err)
	}
	if _, err := store.ConsumeCode(ctx, "m-1", digest, t0); !errors.Is(err, autherr.ErrInvalidCredential) {
		t.Fatalf("record must be gone after the cap, got %v", err)
	}
}

func TestCodeStoreExpired(t *testing.T) {
	_, rdb := newRedis(t)
	store := NewCodeStore(rdb, "").WithClock(func() time.Time { return t0 })
	ctx := context.Background()

	digest := otp.Digest("m-1", "123456")
	if err := store.SaveCode(ctx, otp.CodeRecord{MethodID: "m-1", Digest: digest, ExpiresAt: t0.Add(time.Minute), MaxAttempts: 3}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.ConsumeCode(ctx, "m-1", digest, t0.Add(2*time.Minute)); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRedisDownIsServiceUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	_, err := NewChallengeStore(rdb, "").Consume(context.Background(), "x", passkey.ChallengeAuthentication, t0)
	if !errors.Is(err, autherr.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
