package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestOTPResendCooldown(t *testing.T) {
	rdb, mr := newRedis(t)
	th := NewOTPThrottle(rdb, OTPThrottleConfig{})
	ctx := context.Background()

	if err := th.AllowResend(ctx, "+15550001111"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	err := th.AllowResend(ctx, "+15550001111")
	if !errors.Is(err, autherr.ErrRateLimited) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	if d, ok := autherr.RetryAfter(err); !ok || d <= 0 || d > time.Minute {
		t.Fatalf("retry-after = %v %v", d, ok)
	}
	if err := th.AllowResend(ctx, "+15550002222"); err != nil {
		t.Fatalf("other target must not share cooldown: %v", err)
	}

	mr.FastForward(61 * time.Second)
	if err := th.AllowResend(ctx, "+15550001111"); err != nil {
		t.Fatalf("cooldown should have elapsed: %v", err)
	}
}

func TestOTPVerifyBudget(t *testing.T) {
	rdb, _ := newRedis(t)
	th := NewOTPThrottle(rdb, OTPThrottleConfig{VerifyMaxFailures: 3})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := th.RecordVerifyFailure(ctx, "a@example.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}
	if err := th.CheckVerify(ctx, "a@example.com"); err != nil {
		t.Fatalf("budget not yet spent: %v", err)
	}
	if err := th.RecordVerifyFailure(ctx, "a@example.com"); !errors.Is(err, autherr.ErrRateLimited) {
		t.Fatalf("expected limit on third failure, got %v", err)
	}
	if err := th.CheckVerify(ctx, "a@example.com"); !errors.Is(err, autherr.ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	if err := th.ResetVerify(ctx, "a@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := th.CheckVerify(ctx, "a@example.com"); err != nil {
		t.Fatalf("reset should clear budget: %v", err)
	}
}

func TestTOTPLimiter(t *testing.T) {
	rdb, mr := newRedis(t)
	l := NewTOTPLimiter(rdb, TOTPLimiterConfig{MaxAttempts: 2, Cooldown: time.Minute})
	ctx := context.Background()

	if err := l.RecordFailure(ctx, "u1"); err != nil {
		t.Fatalf("first failure: %v", err)
	}
	if err := l.RecordFailure(ctx, "u1"); !errors.Is(err, autherr.ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	if err := l.Check(ctx, "u1"); !errors.Is(err, autherr.ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if err := l.Check(ctx, "u1"); err != nil {
		t.Fatalf("window should have expired: %v", err)
	}
}

func TestRedisDownIsServiceUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	th := NewOTPThrottle(rdb, OTPThrottleConfig{})

	err := th.AllowResend(context.Background(), "x")
	if !errors.Is(err, autherr.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestNilLimitersArePermissive(t *testing.T) {
	var th *OTPThrottle
	var tl *TOTPLimiter
	ctx := context.Background()
	if th.AllowResend(ctx, "x") != nil || th.CheckVerify(ctx, "x") != nil || tl.Check(ctx, "u") != nil {
		t.Fatal("nil limiter should be a no-op")
	}
}
