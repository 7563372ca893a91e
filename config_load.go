package goTrust

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// configFile mirrors the YAML schema. Zero values leave the default in place.
type configFile struct {
	Token struct {
		Issuer         string        `yaml:"issuer"`
		Audience       string        `yaml:"audience"`
		AccessTTL      time.Duration `yaml:"access_ttl"`
		RefreshTTL     time.Duration `yaml:"refresh_ttl"`
		SignupTTL      time.Duration `yaml:"signup_ttl"`
		DeviceTrustTTL time.Duration `yaml:"device_trust_ttl"`
		KeyEnv         string        `yaml:"key_env"`
	} `yaml:"token"`
	OTP struct {
		DailyLimit     int           `yaml:"daily_limit"`
		SendTimeout    time.Duration `yaml:"send_timeout"`
		ResendCooldown time.Duration `yaml:"resend_cooldown"`
	} `yaml:"otp"`
	TOTP struct {
		Issuer string `yaml:"issuer"`
	} `yaml:"totp"`
	Passkey struct {
		RPID             string        `yaml:"rp_id"`
		RPName           string        `yaml:"rp_name"`
		Origins          []string      `yaml:"origins"`
		ChallengeTTL     time.Duration `yaml:"challenge_ttl"`
		UserVerification string        `yaml:"user_verification"`
	} `yaml:"passkey"`
	Session struct {
		Backend     string `yaml:"backend"`
		RedisPrefix string `yaml:"redis_prefix"`
	} `yaml:"session"`
	Cookie struct {
		Domain   string `yaml:"domain"`
		Secure   *bool  `yaml:"secure"`
		SameSite string `yaml:"same_site"`
	} `yaml:"cookie"`
	MFA struct {
		DefaultMinimumACR int `yaml:"default_minimum_acr"`
	} `yaml:"mfa"`
	Audit struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
		Latency *bool `yaml:"latency_histograms"`
	} `yaml:"metrics"`
	Security struct {
		ProductionMode   *bool `yaml:"production_mode"`
		MaxLoginAttempts int   `yaml:"max_login_attempts"`
	} `yaml:"security"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			var f configFile
			if err := yaml.Unmarshal(raw, &f); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
			if err := f.apply(&cfg); err != nil {
				return Config{}, err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.Token.Issuer = envOrDefault("GOTRUST_TOKEN_ISSUER", cfg.Token.Issuer)
	cfg.Token.Audience = envOrDefault("GOTRUST_TOKEN_AUDIENCE", cfg.Token.Audience)
	cfg.Token.KeyEnv = envOrDefault("GOTRUST_TOKEN_KEY_ENV", cfg.Token.KeyEnv)
	cfg.Token.AccessTTL = time.Duration(envInt("GOTRUST_ACCESS_TTL_MINUTES", int(cfg.Token.AccessTTL.Minutes()))) * time.Minute
	cfg.Token.RefreshTTL = time.Duration(envInt("GOTRUST_REFRESH_TTL_HOURS", int(cfg.Token.RefreshTTL.Hours()))) * time.Hour

	cfg.OTP.DailyLimit = envInt("GOTRUST_OTP_DAILY_LIMIT", cfg.OTP.DailyLimit)

	cfg.Passkey.RPID = envOrDefault("GOTRUST_RP_ID", cfg.Passkey.RPID)
	cfg.Passkey.RPName = envOrDefault("GOTRUST_RP_NAME", cfg.Passkey.RPName)
	cfg.Passkey.Origins = envCSV("GOTRUST_RP_ORIGINS", cfg.Passkey.Origins)
	cfg.Passkey.UserVerification = envOrDefault("GOTRUST_USER_VERIFICATION", cfg.Passkey.UserVerification)

	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(envOrDefault("GOTRUST_SESSION_BACKEND", cfg.Session.Backend)))

	cfg.Cookie.Domain = envOrDefault("GOTRUST_COOKIE_DOMAIN", cfg.Cookie.Domain)
	cfg.Cookie.Secure = envBool("GOTRUST_COOKIE_SECURE", cfg.Cookie.Secure)
	if raw := os.Getenv("GOTRUST_COOKIE_SAMESITE"); raw != "" {
		mode, err := parseSameSite(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Cookie.SameSite = mode
	}

	cfg.Audit.Enabled = envBool("GOTRUST_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = envBool("GOTRUST_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Security.ProductionMode = envBool("GOTRUST_PRODUCTION", cfg.Security.ProductionMode)
	cfg.Security.MaxLoginAttempts = envInt("GOTRUST_MAX_LOGIN_ATTEMPTS", cfg.Security.MaxLoginAttempts)

	if cfg.Passkey.RPName == "" {
		cfg.Passkey.RPName = cfg.Passkey.RPID
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (f configFile) apply(cfg *Config) error {
	setString(&cfg.Token.Issuer, f.Token.Issuer)
	setString(&cfg.Token.Audience, f.Token.Audience)
	setString(&cfg.Token.KeyEnv, f.Token.KeyEnv)
	setDuration(&cfg.Token.AccessTTL, f.Token.AccessTTL)
	setDuration(&cfg.Token.RefreshTTL, f.Token.RefreshTTL)
	setDuration(&cfg.Token.SignupTTL, f.Token.SignupTTL)
	setDuration(&cfg.Token.DeviceTrustTTL, f.Token.DeviceTrustTTL)

	if f.OTP.DailyLimit > 0 {
		cfg.OTP.DailyLimit = f.OTP.DailyLimit
	}
	setDuration(&cfg.OTP.SendTimeout, f.OTP.SendTimeout)
	setDuration(&cfg.OTP.ResendCooldown, f.OTP.ResendCooldown)
	setString(&cfg.TOTP.Issuer, f.TOTP.Issuer)

	setString(&cfg.Passkey.RPID, f.Passkey.RPID)
	setString(&cfg.Passkey.RPName, f.Passkey.RPName)
	if len(f.Passkey.Origins) > 0 {
		cfg.Passkey.Origins = f.Passkey.Origins
	}
	setDuration(&cfg.Passkey.ChallengeTTL, f.Passkey.ChallengeTTL)
	setString(&cfg.Passkey.UserVerification, f.Passkey.UserVerification)

	setString(&cfg.Session.Backend, f.Session.Backend)
	setString(&cfg.Session.RedisPrefix, f.Session.RedisPrefix)

	setString(&cfg.Cookie.Domain, f.Cookie.Domain)
	if f.Cookie.Secure != nil {
		cfg.Cookie.Secure = *f.Cookie.Secure
	}
	if f.Cookie.SameSite != "" {
		mode, err := parseSameSite(f.Cookie.SameSite)
		if err != nil {
			return err
		}
		cfg.Cookie.SameSite = mode
	}

	if f.MFA.DefaultMinimumACR != 0 {
		cfg.MFA.DefaultMinimumACR = f.MFA.DefaultMinimumACR
	}
	if f.Audit.Enabled != nil {
		cfg.Audit.Enabled = *f.Audit.Enabled
	}
	if f.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *f.Metrics.Enabled
	}
	if f.Metrics.Latency != nil {
		cfg.Metrics.EnableLatencyHistograms = *f.Metrics.Latency
	}
	if f.Security.ProductionMode != nil {
		cfg.Security.ProductionMode = *f.Security.ProductionMode
	}
	if f.Security.MaxLoginAttempts > 0 {
		cfg.Security.MaxLoginAttempts = f.Security.MaxLoginAttempts
	}
	return nil
}

func parseSameSite(raw string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown SameSite mode %q", raw)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
