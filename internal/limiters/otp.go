package limiters

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/redis/go-redis/v9"
)

const (
	defaultResendCooldown    = 60 * time.Second
	defaultVerifyMaxFailures = 10
	defaultVerifyWindow      = 15 * time.Minute
)

// ErrOTPUnavailable wraps Redis failures raised by [OTPThrottle].
var ErrOTPUnavailable = fmt.Errorf("%w: otp throttle backend", autherr.ErrServiceUnavailable)

// OTPThrottleConfig tunes [OTPThrottle]. Zero fields fall back to a 60s
// resend cooldown and 10 failed verifications per 15 minutes.
type OTPThrottleConfig struct {
	ResendCooldown    time.Duration
	VerifyMaxFailures int
	VerifyWindow      time.Duration
}

// OTPThrottle limits code traffic per delivery target (phone or email),
// independent of which method record the target belongs to.
type OTPThrottle struct {
	redis  redis.UniversalClient
	config OTPThrottleConfig
	verify failureBudget
}

// NewOTPThrottle creates an OTP throttle backed by redisClient.
func NewOTPThrottle(redisClient redis.UniversalClient, cfg OTPThrottleConfig) *OTPThrottle {
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = defaultResendCooldown
	}
	if cfg.VerifyMaxFailures <= 0 {
		cfg.VerifyMaxFailures = defaultVerifyMaxFailures
	}
	if cfg.VerifyWindow <= 0 {
		cfg.VerifyWindow = defaultVerifyWindow
	}
	return &OTPThrottle{redis: redisClient, config: cfg, verify: failureBudget{
		redis:       redisClient,
		prefix:      "tov:",
		max:         int64(cfg.VerifyMaxFailures),
		window:      cfg.VerifyWindow,
		reason:      "too many failed verifications",
		unavailable: ErrOTPUnavailable,
	}}
}

// AllowResend admits one send per target per cooldown. The marker is claimed
// with SET NX, so two racing sends cannot both pass.
func (t *OTPThrottle) AllowResend(ctx context.Context, target string) error {
	if t == nil {
		return nil
	}
	ok, err := t.redis.SetNX(ctx, resendKey(target), 1, t.config.ResendCooldown).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
	}
	if ok {
		return nil
	}
	retry := t.config.ResendCooldown
	if ttl, err := t.redis.PTTL(ctx, resendKey(target)).Result(); err == nil && ttl > 0 {
		retry = ttl
	}
	return &autherr.RateLimitError{RetryAfter: retry, Reason: "code recently sent"}
}

// CheckVerify rejects verification for a target that exhausted its failure budget.
func (t *OTPThrottle) CheckVerify(ctx context.Context, target string) error {
	if t == nil {
		return nil
	}
	return t.verify.check(ctx, target)
}

// RecordVerifyFailure counts one wrong code. It returns a rate-limit error once
// the failure that exhausted the budget has been recorded.
func (t *OTPThrottle) RecordVerifyFailure(ctx context.Context, target string) error {
	if t == nil {
		return nil
	}
	return t.verify.record(ctx, target)
}

// ResetVerify clears the failure counter after a successful verification.
func (t *OTPThrottle) ResetVerify(ctx context.Context, target string) error {
	if t == nil {
		return nil
	}
	return t.verify.reset(ctx, target)
}

func resendKey(target string) string {
	return "tos:" + target
}
