package goTrust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/device"
	"github.com/MrEthical07/goTrust/internal/audit"
	"github.com/MrEthical07/goTrust/internal/cache"
	"github.com/MrEthical07/goTrust/internal/limiters"
	"github.com/MrEthical07/goTrust/internal/rate"
	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/mfa"
	"github.com/MrEthical07/goTrust/otp"
	"github.com/MrEthical07/goTrust/passkey"
	"github.com/MrEthical07/goTrust/session"
	"github.com/MrEthical07/goTrust/storage/postgres"
	"github.com/MrEthical07/goTrust/token"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var errNoChannel = errors.New("no otp delivery channel configured")

// Builder assembles an Engine. It is single use: Build may be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *gorm.DB

	keySource   token.KeySource
	methods     authmethod.Store
	devices     device.Store
	preferences mfa.PreferenceStore
	sessions    session.Backend
	challenges  passkey.ChallengeStore
	codes       otp.CodeStore
	channel     otp.Channel

	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client behind the session, challenge and code stores
// and the limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDatabase backs every store not set explicitly with the Postgres
// repositories. The session store follows Config.Session.Backend.
func (b *Builder) WithDatabase(db *gorm.DB) *Builder {
	b.db = db
	return b
}

// WithKeySource overrides the token key source. The default reads the
// environment variable named by Config.Token.KeyEnv.
func (b *Builder) WithKeySource(src token.KeySource) *Builder {
	b.keySource = src
	return b
}

func (b *Builder) WithMethodStore(s authmethod.Store) *Builder {
	b.methods = s
	return b
}

func (b *Builder) WithDeviceStore(s device.Store) *Builder {
	b.devices = s
	return b
}

func (b *Builder) WithPreferenceStore(s mfa.PreferenceStore) *Builder {
	b.preferences = s
	return b
}

func (b *Builder) WithSessionBackend(s session.Backend) *Builder {
	b.sessions = s
	return b
}

func (b *Builder) WithChallengeStore(s passkey.ChallengeStore) *Builder {
	b.challenges = s
	return b
}

func (b *Builder) WithCodeStore(s otp.CodeStore) *Builder {
	b.codes = s
	return b
}

// WithChannel sets the outbound SMS/email channel. Without one every send
// fails with ErrProviderFailure.
func (b *Builder) WithChannel(ch otp.Channel) *Builder {
	b.channel = ch
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the sink behind the audit dispatcher. It only takes
// effect when Config.Audit.Enabled is set; the default sink logs through
// the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now in every component. Tests only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires every component.
//
// A token key that cannot be loaded does not fail Build: the engine starts,
// logs the problem at error level and rejects every token operation with
// ErrServiceUnavailable.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "gotrust")

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- STORES --------
	if b.db != nil {
		if b.methods == nil {
			b.methods = postgres.NewMethodRepository(b.db)
		}
		if b.devices == nil {
			b.devices = postgres.NewDeviceRepository(b.db)
		}
		if b.preferences == nil {
			b.preferences = postgres.NewPreferenceRepository(b.db)
		}
		if b.sessions == nil && cfg.Session.Backend == SessionBackendPostgres {
			b.sessions = postgres.NewSessionRepository(b.db, now)
		}
	}
	if b.redis != nil {
		if b.sessions == nil && cfg.Session.Backend == SessionBackendRedis {
			b.sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix).WithClock(now)
		}
		if b.challenges == nil {
			b.challenges = stores.NewChallengeStore(b.redis, cfg.Passkey.RedisPrefix)
		}
		if b.codes == nil {
			b.codes = stores.NewCodeStore(b.redis, cfg.OTP.RedisPrefix).WithClock(now)
		}
	}

	switch {
	case b.methods == nil:
		return nil, errors.New("method store required")
	case b.devices == nil:
		return nil, errors.New("device store required")
	case b.preferences == nil:
		return nil, errors.New("preference store required")
	case b.sessions == nil:
		return nil, fmt.Errorf("session backend %q requires redis client or database", cfg.Session.Backend)
	case b.challenges == nil:
		return nil, errors.New("challenge store requires redis client")
	case b.codes == nil:
		return nil, errors.New("code store requires redis client")
	}

	// -------- TOKEN MANAGER --------
	keySource := b.keySource
	if keySource == nil {
		keySource = token.EnvKey(cfg.Token.KeyEnv)
	}
	tokens, err := token.NewManager(token.Config{
		Issuer:         cfg.Token.Issuer,
		Audience:       cfg.Token.Audience,
		SignupTTL:      cfg.Token.SignupTTL,
		AccessTTL:      cfg.Token.AccessTTL,
		RefreshTTL:     cfg.Token.RefreshTTL,
		DeviceTrustTTL: cfg.Token.DeviceTrustTTL,
		Leeway:         cfg.Token.Leeway,
	}, keySource, now)
	if err != nil {
		return nil, err
	}
	if keyErr := tokens.Unavailable(); keyErr != nil {
		logger.Error("token key unavailable, token operations disabled",
			"operation", "build",
			"outcome", "degraded",
			"error", keyErr,
		)
	}

	// -------- LIMITERS --------
	var (
		rateLimiter *rate.Limiter
		totpLimiter *limiters.TOTPLimiter
		throttle    otp.Throttle
	)
	if b.redis != nil {
		rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
		totpLimiter = limiters.NewTOTPLimiter(b.redis, limiters.TOTPLimiterConfig{
			MaxAttempts: cfg.TOTP.MaxAttempts,
			Cooldown:    cfg.TOTP.Cooldown,
		})
		throttle = limiters.NewOTPThrottle(b.redis, limiters.OTPThrottleConfig{
			ResendCooldown:    cfg.OTP.ResendCooldown,
			VerifyMaxFailures: cfg.OTP.VerifyMaxFailures,
			VerifyWindow:      cfg.OTP.VerifyWindow,
		})
	}

	// -------- OTP --------
	channel := b.channel
	if channel == nil {
		channel = otp.ChannelFunc(func(context.Context, otp.Delivery) error { return errNoChannel })
	}
	otpEngine, err := otp.NewEngine(otp.Config{
		CodeDigits:       cfg.OTP.CodeDigits,
		SMSCodeTTL:       cfg.OTP.SMSCodeTTL,
		EmailCodeTTL:     cfg.OTP.EmailCodeTTL,
		SMSMaxAttempts:   cfg.OTP.SMSMaxAttempts,
		EmailMaxAttempts: cfg.OTP.EmailMaxAttempts,
		DailyLimit:       cfg.otpDailyLimit(),
		SendTimeout:      cfg.OTP.SendTimeout,
	}, b.methods, b.codes, channel, throttle, now)
	if err != nil {
		return nil, err
	}

	// -------- PASSKEY --------
	passkeys, err := passkey.NewEngine(passkey.Config{
		RPID:               cfg.Passkey.RPID,
		RPName:             cfg.Passkey.RPName,
		Origins:            cfg.Passkey.Origins,
		ChallengeTTL:       cfg.Passkey.ChallengeTTL,
		Timeout:            cfg.Passkey.Timeout,
		UserVerification:   cfg.Passkey.UserVerification,
		AttestationFormats: cfg.Passkey.AttestationFormats,
	}, b.challenges, b.methods, now)
	if err != nil {
		return nil, err
	}

	// -------- MFA POLICY --------
	policy, err := mfa.NewEngine(b.preferences, b.methods, cfg.MFA.DefaultMinimumACR, now)
	if err != nil {
		return nil, err
	}

	var settingsCache *cache.Cache[string, mfa.Settings]
	if cfg.Cache.SettingsTTL > 0 {
		settingsCache = cache.New[string, mfa.Settings](cfg.Cache.SettingsTTL, cfg.Cache.SettingsSize, now)
	}

	// -------- AUDIT --------
	var dispatcher *audit.Dispatcher
	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = audit.SlogSink{Logger: logger}
		}
		dispatcher = audit.NewDispatcher(audit.Config{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Now:        now,
			Logger:     logger,
		}, sink)
	}

	b.built = true

	e := &Engine{
		config:        cfg,
		logger:        logger,
		tokens:        tokens,
		sessions:      b.sessions,
		methods:       b.methods,
		otp:           otpEngine,
		totp:          otp.NewTOTP(otp.TOTPConfig{Issuer: cfg.TOTP.Issuer, Digits: cfg.TOTP.Digits, Period: cfg.TOTP.Period, Algorithm: cfg.TOTP.Algorithm, Skew: cfg.TOTP.Skew}),
		passkeys:      passkeys,
		policy:        policy,
		devices:       device.NewService(b.devices, now),
		rateLimiter:   rateLimiter,
		totpLimiter:   totpLimiter,
		settingsCache: settingsCache,
		audit:         dispatcher,
		metrics:       NewMetrics(cfg.Metrics),
		now:           now,
	}
	return e, nil
}
