package goTrust

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/device"
	"github.com/MrEthical07/goTrust/internal/audit"
	"github.com/MrEthical07/goTrust/internal/cache"
	"github.com/MrEthical07/goTrust/internal/limiters"
	"github.com/MrEthical07/goTrust/internal/rate"
	"github.com/MrEthical07/goTrust/mfa"
	"github.com/MrEthical07/goTrust/otp"
	"github.com/MrEthical07/goTrust/passkey"
	"github.com/MrEthical07/goTrust/session"
	"github.com/MrEthical07/goTrust/token"
)

// Engine is the caller-facing trust core. It composes the factor engines,
// the token manager and the session backend; every login ends in
// IssueSession.
//
// An Engine is safe for concurrent use once built.
type Engine struct {
	config        Config
	logger        *slog.Logger
	tokens        *token.Manager
	sessions      session.Backend
	methods       authmethod.Store
	otp           *otp.Engine
	totp          *otp.TOTP
	passkeys      *passkey.Engine
	policy        *mfa.Engine
	devices       *device.Service
	rateLimiter   *rate.Limiter
	totpLimiter   *limiters.TOTPLimiter
	settingsCache *cache.Cache[string, mfa.Settings]
	audit         *audit.Dispatcher
	metrics       *Metrics
	now           func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Logger returns the engine logger, already tagged with module=gotrust.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// Ready reports whether tokens can be issued and validated.
func (e *Engine) Ready() error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if err := e.tokens.Unavailable(); err != nil {
		return ErrServiceUnavailable
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// noteTokenError counts token operations refused because the key is missing.
func (e *Engine) noteTokenError(err error) {
	if errors.Is(err, autherr.ErrServiceUnavailable) {
		e.metricInc(MetricTokenUnavailable)
	}
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}
