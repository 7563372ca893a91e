package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/google/uuid"
)

const dailyWindow = 24 * time.Hour

// Config tunes out-of-band codes.
type Config struct {
	CodeDigits       int
	SMSCodeTTL       time.Duration
	EmailCodeTTL     time.Duration
	SMSMaxAttempts   int
	EmailMaxAttempts int
	DailyLimit       int
	SendTimeout      time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CodeDigits:       6,
		SMSCodeTTL:       5 * time.Minute,
		EmailCodeTTL:     10 * time.Minute,
		SMSMaxAttempts:   5,
		EmailMaxAttempts: 3,
		DailyLimit:       10,
		SendTimeout:      10 * time.Second,
	}
}

// SendResult describes an accepted send.
type SendResult struct {
	MethodID       string
	ExpiresAt      time.Time
	RemainingToday int
}

// Engine runs SMS and email code flows on top of an authmethod.Store.
type Engine struct {
	config   Config
	methods  authmethod.Store
	codes    CodeStore
	channel  Channel
	throttle Throttle
	now      func() time.Time
}

// NewEngine wires the engine. throttle and now may be nil.
func NewEngine(cfg Config, methods authmethod.Store, codes CodeStore, channel Channel, throttle Throttle, now func() time.Time) (*Engine, error) {
	if methods == nil || codes == nil || channel == nil {
		return nil, errors.New("otp: methods, codes and channel are required")
	}
	if cfg.CodeDigits <= 0 || cfg.DailyLimit <= 0 || cfg.SendTimeout <= 0 {
		return nil, errors.New("otp: CodeDigits, DailyLimit and SendTimeout must be > 0")
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		config:   cfg,
		methods:  methods,
		codes:    codes,
		channel:  channel,
		throttle: throttle,
		now:      now,
	}, nil
}

// BeginRegistration enrolls target for userID and sends the first code.
//
// A target already verified for the user is returned without sending. A
// pending method is reused. A method created by this call is deleted again if
// delivery fails, so no half-registered method survives a provider failure.
func (e *Engine) BeginRegistration(ctx context.Context, userID string, kind authmethod.Kind, target string) (authmethod.Method, SendResult, error) {
	if kind != authmethod.KindSMSOTP && kind != authmethod.KindEmailOTP {
		return authmethod.Method{}, SendResult{}, autherr.Validation("unsupported otp kind " + string(kind))
	}
	if target == "" || userID == "" {
		return authmethod.Method{}, SendResult{}, autherr.Validation("user and target are required")
	}

	existing, err := e.methods.FindByTarget(ctx, kind, target)
	switch {
	case err == nil && existing.UserID == userID:
		if existing.Verified {
			return existing, SendResult{MethodID: existing.ID}, nil
		}
		res, err := e.SendForMethod(ctx, existing.ID)
		return existing, res, err
	case err == nil:
		return authmethod.Method{}, SendResult{}, autherr.Validation("target already registered")
	case !errors.Is(err, autherr.ErrNotFound):
		return authmethod.Method{}, SendResult{}, err
	}

	now := e.now()
	m := authmethod.New(uuid.NewString(), userID, metadataFor(kind, target), now)
	if err := e.methods.Create(ctx, m); err != nil {
		return authmethod.Method{}, SendResult{}, err
	}

	res, err := e.SendForMethod(ctx, m.ID)
	if err != nil {
		if delErr := e.methods.Delete(ctx, m.ID); delErr != nil {
			return authmethod.Method{}, SendResult{}, errors.Join(err, fmt.Errorf("rollback method %s: %w", m.ID, delErr))
		}
		return authmethod.Method{}, SendResult{}, err
	}
	return m, res, nil
}

// CompleteRegistration verifies the enrollment code. It is idempotent: an
// already verified method succeeds without checking code again.
func (e *Engine) CompleteRegistration(ctx context.Context, methodID, code string) (authmethod.Method, error) {
	m, err := e.methods.Get(ctx, methodID)
	if err != nil {
		return authmethod.Method{}, err
	}
	if m.Verified {
		return m, nil
	}
	if err := e.verifyCode(ctx, m, code); err != nil {
		return authmethod.Method{}, err
	}

	now := e.now()
	return e.methods.UpdateIf(ctx, methodID, nil, func(cur authmethod.Method) authmethod.Method {
		cur.Verified = true
		cur.Active = true
		cur.LastUsedAt = now
		return cur
	})
}

// SendForMethod issues a code for an existing method, applying the daily cap, the
// resend cooldown and a bounded delivery.
func (e *Engine) SendForMethod(ctx context.Context, methodID string) (SendResult, error) {
	m, err := e.methods.Get(ctx, methodID)
	if err != nil {
		return SendResult{}, err
	}
	target, ok := m.Target()
	if !ok {
		return SendResult{}, autherr.Validation("method does not accept codes")
	}
	if e.throttle != nil {
		if err := e.throttle.AllowResend(ctx, target); err != nil {
			return SendResult{}, err
		}
	}

	now := e.now()
	updated, err := e.methods.UpdateIf(ctx, methodID,
		func(cur authmethod.Method) error { return admitSend(cur, now, e.config.DailyLimit) },
		func(cur authmethod.Method) authmethod.Method { return countSend(cur, now) },
	)
	if err != nil {
		return SendResult{}, err
	}

	code, err := GenerateCode(e.config.CodeDigits)
	if err != nil {
		return SendResult{}, err
	}
	ttl, maxAttempts := e.codePolicy(m.Kind)
	rec := CodeRecord{
		MethodID:    methodID,
		Digest:      Digest(methodID, code),
		ExpiresAt:   now.Add(ttl),
		MaxAttempts: maxAttempts,
	}
	if err := e.codes.SaveCode(ctx, rec); err != nil {
		return SendResult{}, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.config.SendTimeout)
	defer cancel()
	if err := e.channel.Send(sendCtx, Delivery{Kind: m.Kind, Target: target, Code: code, ExpiresIn: ttl}); err != nil {
		_ = e.codes.DeleteCode(ctx, methodID)
		return SendResult{}, fmt.Errorf("%w: %v", autherr.ErrProviderFailure, err)
	}

	count, _ := dailyState(updated)
	return SendResult{
		MethodID:       methodID,
		ExpiresAt:      rec.ExpiresAt,
		RemainingToday: max(e.config.DailyLimit-count, 0),
	}, nil
}

// SendOtp looks up the verified method for target and sends a login code.
func (e *Engine) SendOtp(ctx context.Context, kind authmethod.Kind, target string) (SendResult, error) {
	m, err := e.methods.FindByTarget(ctx, kind, target)
	if err != nil {
		return SendResult{}, err
	}
	if !m.Usable() {
		return SendResult{}, fmt.Errorf("method %s: %w", m.ID, autherr.ErrNotFound)
	}
	return e.SendForMethod(ctx, m.ID)
}

// VerifyOtp checks a login code for target and stamps LastUsedAt.
func (e *Engine) VerifyOtp(ctx context.Context, kind authmethod.Kind, target, code string) (authmethod.Method, error) {
	m, err := e.methods.FindByTarget(ctx, kind, target)
	if err != nil {
		return authmethod.Method{}, err
	}
	return e.VerifyForMethod(ctx, m.ID, code)
}

// VerifyForMethod checks a login code for a usable method.
func (e *Engine) VerifyForMethod(ctx context.Context, methodID, code string) (authmethod.Method, error) {
	m, err := e.methods.Get(ctx, methodID)
	if err != nil {
		return authmethod.Method{}, err
	}
	if !m.Usable() {
		return authmethod.Method{}, autherr.ErrInvalidCredential
	}
	if err := e.verifyCode(ctx, m, code); err != nil {
		return authmethod.Method{}, err
	}
	now := e.now()
	return e.methods.UpdateIf(ctx, methodID, nil, func(cur authmethod.Method) authmethod.Method {
		cur.LastUsedAt = now
		return cur
	})
}

func (e *Engine) verifyCode(ctx context.Context, m authmethod.Method, code string) error {
	target, ok := m.Target()
	if !ok {
		return autherr.ErrInvalidCredential
	}
	if e.throttle != nil {
		if err := e.throttle.CheckVerify(ctx, target); err != nil {
			return err
		}
	}

	_, err := e.codes.ConsumeCode(ctx, m.ID, Digest(m.ID, code), e.now())
	if err != nil {
		if e.throttle != nil && errors.Is(err, autherr.ErrInvalidCredential) {
			if terr := e.throttle.RecordVerifyFailure(ctx, target); terr != nil {
				return terr
			}
		}
		return err
	}
	if e.throttle != nil {
		_ = e.throttle.ResetVerify(ctx, target)
	}
	return nil
}

func (e *Engine) codePolicy(kind authmethod.Kind) (time.Duration, int) {
	if kind == authmethod.KindEmailOTP {
		return e.config.EmailCodeTTL, e.config.EmailMaxAttempts
	}
	return e.config.SMSCodeTTL, e.config.SMSMaxAttempts
}

func metadataFor(kind authmethod.Kind, target string) authmethod.Metadata {
	if kind == authmethod.KindEmailOTP {
		return authmethod.EmailOtp{Email: target}
	}
	return authmethod.SmsOtp{PhoneNumber: target}
}

// dailyState returns the send counter and the start of its window.
func dailyState(m authmethod.Method) (int, time.Time) {
	switch meta := m.Metadata.(type) {
	case authmethod.SmsOtp:
		return meta.DailyCount, meta.DailyResetAt
	case authmethod.EmailOtp:
		return meta.DailyCount, meta.DailyResetAt
	default:
		return 0, time.Time{}
	}
}

// windowOpen reports whether the 24h window that started at resetAt is still
// running. The reset is lazy: nothing clears counters in the background.
func windowOpen(resetAt, now time.Time) bool {
	return !resetAt.IsZero() && now.Sub(resetAt) < dailyWindow
}

// admitSend rejects a send once the method reached limit inside its window.
func admitSend(m authmethod.Method, now time.Time, limit int) error {
	count, resetAt := dailyState(m)
	if !windowOpen(resetAt, now) {
		return nil
	}
	if count >= limit {
		return &autherr.RateLimitError{
			RetryAfter: resetAt.Add(dailyWindow).Sub(now),
			Reason:     "daily code limit reached",
		}
	}
	return nil
}

// countSend records one send, opening a new window when the old one elapsed.
func countSend(m authmethod.Method, now time.Time) authmethod.Method {
	count, resetAt := dailyState(m)
	if !windowOpen(resetAt, now) {
		count, resetAt = 0, now
	}
	count++

	switch meta := m.Metadata.(type) {
	case authmethod.SmsOtp:
		meta.DailyCount, meta.DailyResetAt = count, resetAt
		m.Metadata = meta
	case authmethod.EmailOtp:
		meta.DailyCount, meta.DailyResetAt = count, resetAt
		m.Metadata = meta
	}
	return m
}
