package goTrust

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config is the full engine configuration. Start from DefaultConfig and
// override what you need, or use LoadConfig.
type Config struct {
	Token    TokenConfig
	OTP      OTPConfig
	TOTP     TOTPConfig
	Passkey  PasskeyConfig
	Session  SessionConfig
	Cookie   CookieConfig
	MFA      MFAConfig
	Device   DeviceConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
	Cache    CacheConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls v4.local token lifetimes. The key is never part of
// the config; KeyEnv names the environment variable the default key source
// reads.
type TokenConfig struct {
	Issuer         string
	Audience       string
	SignupTTL      time.Duration
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	DeviceTrustTTL time.Duration
	Leeway         time.Duration
	KeyEnv         string
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig tunes SMS and email codes. DailyLimit 0 resolves to 10 in
// production mode and 100 otherwise.
type OTPConfig struct {
	CodeDigits        int
	SMSCodeTTL        time.Duration
	EmailCodeTTL      time.Duration
	SMSMaxAttempts    int
	EmailMaxAttempts  int
	DailyLimit        int
	SendTimeout       time.Duration
	ResendCooldown    time.Duration
	VerifyMaxFailures int
	VerifyWindow      time.Duration
	RedisPrefix       string
}

/*
====================================
TOTP CONFIG
====================================
*/

type TOTPConfig struct {
	Issuer      string
	Digits      int
	Period      int
	Algorithm   string
	Skew        int
	MaxAttempts int
	Cooldown    time.Duration
}

/*
====================================
PASSKEY CONFIG
====================================
*/

// PasskeyConfig describes the WebAuthn relying party.
type PasskeyConfig struct {
	RPID               string
	RPName             string
	Origins            []string
	ChallengeTTL       time.Duration
	Timeout            time.Duration
	UserVerification   string // "required", "preferred" or "discouraged"
	AttestationFormats []string
	RedisPrefix        string
}

/*
====================================
SESSION CONFIG
====================================
*/

const (
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

type SessionConfig struct {
	Backend     string
	RedisPrefix string
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig carries the attributes shared by every auth cookie and the
// cookie names.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite

	AccessName      string
	RefreshName     string
	SessionName     string
	SignupName      string
	DeviceTrustName string
}

/*
====================================
MFA CONFIG
====================================
*/

type MFAConfig struct {
	DefaultMinimumACR int
}

/*
====================================
DEVICE CONFIG
====================================
*/

// DeviceConfig controls the device trust flows.
type DeviceConfig struct {
	AutoBlock bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds production hardening and login/refresh throttles.
type SecurityConfig struct {
	ProductionMode          bool
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig sizes the MFA settings cache. TTL 0 disables it.
type CacheConfig struct {
	SettingsTTL  time.Duration
	SettingsSize int
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns development-friendly defaults. The passkey relying
// party must still be set before Build.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:         "gotrust",
			Audience:       "gotrust-api",
			SignupTTL:      15 * time.Minute,
			AccessTTL:      30 * time.Minute,
			RefreshTTL:     7 * 24 * time.Hour,
			DeviceTrustTTL: 30 * 24 * time.Hour,
			Leeway:         5 * time.Second,
			KeyEnv:         "GOTRUST_TOKEN_KEY",
		},
		OTP: OTPConfig{
			CodeDigits:        6,
			SMSCodeTTL:        5 * time.Minute,
			EmailCodeTTL:      10 * time.Minute,
			SMSMaxAttempts:    5,
			EmailMaxAttempts:  3,
			SendTimeout:       10 * time.Second,
			ResendCooldown:    60 * time.Second,
			VerifyMaxFailures: 10,
			VerifyWindow:      15 * time.Minute,
			RedisPrefix:       "toc",
		},
		TOTP: TOTPConfig{
			Issuer:      "goTrust",
			Digits:      6,
			Period:      30,
			Algorithm:   "SHA1",
			Skew:        1,
			MaxAttempts: 5,
			Cooldown:    time.Minute,
		},
		Passkey: PasskeyConfig{
			ChallengeTTL:       5 * time.Minute,
			Timeout:            60 * time.Second,
			UserVerification:   "preferred",
			AttestationFormats: []string{"none", "packed"},
			RedisPrefix:        "tch",
		},
		Session: SessionConfig{
			Backend:     SessionBackendRedis,
			RedisPrefix: "ts",
		},
		Cookie: CookieConfig{
			Path:            "/",
			Secure:          true,
			SameSite:        http.SameSiteStrictMode,
			AccessName:      "access_token",
			RefreshName:     "refresh_token",
			SessionName:     "session_id",
			SignupName:      "signup_token",
			DeviceTrustName: "device_trust",
		},
		MFA: MFAConfig{
			DefaultMinimumACR: 2,
		},
		Device: DeviceConfig{
			AutoBlock: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode:          false,
			EnableIPThrottle:        true,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Cache: CacheConfig{
			SettingsTTL:  30 * time.Second,
			SettingsSize: 10000,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Passkey.Origins = append([]string(nil), cfg.Passkey.Origins...)
	out.Passkey.AttestationFormats = append([]string(nil), cfg.Passkey.AttestationFormats...)
	return out
}

// otpDailyLimit resolves the per-method daily send cap.
func (c *Config) otpDailyLimit() int {
	if c.OTP.DailyLimit > 0 {
		return c.OTP.DailyLimit
	}
	if c.Security.ProductionMode {
		return 10
	}
	return 100
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration. Production mode adds hardening rules.
func (c *Config) Validate() error {
	// Token
	if c.Token.SignupTTL <= 0 || c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 || c.Token.DeviceTrustTTL <= 0 {
		return errors.New("Token TTLs must be > 0")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("Token AccessTTL must be shorter than RefreshTTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// OTP
	if c.OTP.CodeDigits < 6 || c.OTP.CodeDigits > 10 {
		return errors.New("OTP CodeDigits must be between 6 and 10")
	}
	if c.OTP.SMSCodeTTL <= 0 || c.OTP.EmailCodeTTL <= 0 {
		return errors.New("OTP code TTLs must be > 0")
	}
	if c.OTP.SMSMaxAttempts <= 0 || c.OTP.EmailMaxAttempts <= 0 {
		return errors.New("OTP max attempts must be > 0")
	}
	if c.OTP.DailyLimit < 0 {
		return errors.New("OTP DailyLimit must be >= 0")
	}
	if c.OTP.SendTimeout <= 0 {
		return errors.New("OTP SendTimeout must be > 0")
	}

	// TOTP
	if c.TOTP.Digits != 0 && (c.TOTP.Digits < 6 || c.TOTP.Digits > 8) {
		return errors.New("TOTP Digits must be between 6 and 8")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return fmt.Errorf("TOTP Algorithm %q not supported", c.TOTP.Algorithm)
	}

	// Passkey
	if c.Passkey.RPID == "" {
		return errors.New("Passkey RPID must be set")
	}
	if len(c.Passkey.Origins) == 0 {
		return errors.New("Passkey Origins must not be empty")
	}
	if c.Passkey.ChallengeTTL <= 0 {
		return errors.New("Passkey ChallengeTTL must be > 0")
	}
	switch c.Passkey.UserVerification {
	case "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("Passkey UserVerification %q not supported", c.Passkey.UserVerification)
	}

	// Session
	switch c.Session.Backend {
	case SessionBackendRedis, SessionBackendPostgres:
	default:
		return fmt.Errorf("Session Backend %q not supported", c.Session.Backend)
	}

	// Cookie
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" || c.Cookie.SessionName == "" ||
		c.Cookie.SignupName == "" || c.Cookie.DeviceTrustName == "" {
		return errors.New("Cookie names must be set")
	}

	// MFA
	if c.MFA.DefaultMinimumACR != 2 && c.MFA.DefaultMinimumACR != 3 {
		return errors.New("MFA DefaultMinimumACR must be 2 or 3")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxRefreshAttempts < 0 {
		return errors.New("Security attempt limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when MaxLoginAttempts is set")
	}
	if c.Security.EnableRefreshThrottle && (c.Security.MaxRefreshAttempts <= 0 || c.Security.RefreshCooldownDuration <= 0) {
		return errors.New("Security refresh throttle requires MaxRefreshAttempts and RefreshCooldownDuration")
	}

	// Cache
	if c.Cache.SettingsTTL < 0 || c.Cache.SettingsSize < 0 {
		return errors.New("Cache settings must be >= 0")
	}

	if c.Security.ProductionMode {
		if !c.Cookie.Secure {
			return errors.New("ProductionMode requires Secure cookies")
		}
		if c.Token.AccessTTL > 30*time.Minute {
			return errors.New("ProductionMode requires Token AccessTTL <= 30m")
		}
		if c.Token.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires Token RefreshTTL <= 30d")
		}
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("ProductionMode requires login rate limiting")
		}
		for _, origin := range c.Passkey.Origins {
			if !strings.HasPrefix(origin, "https://") {
				return fmt.Errorf("ProductionMode requires https passkey origins, got %q", origin)
			}
		}
	}

	return nil
}
