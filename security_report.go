package goTrust

import (
	"net/http"

	"github.com/MrEthical07/goTrust/internal/security"
)

// SecurityReport is the effective security posture of a built Engine.
type SecurityReport = security.Report

// SecurityReport summarizes the running configuration and lists weak
// settings as warnings. Login throttling is reported inactive when no Redis
// client was wired, whatever the configured limits say.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	maxLogin := cfg.Security.MaxLoginAttempts
	refreshThrottle := cfg.Security.EnableRefreshThrottle
	if e.rateLimiter == nil {
		maxLogin = 0
		refreshThrottle = false
	}

	return security.BuildReport(security.ReportInput{
		ProductionMode:        cfg.Security.ProductionMode,
		TokenKeyAvailable:     e.tokens != nil && e.tokens.Unavailable() == nil,
		AccessTTL:             cfg.Token.AccessTTL,
		RefreshTTL:            cfg.Token.RefreshTTL,
		ChallengeTTL:          cfg.Passkey.ChallengeTTL,
		UserVerification:      cfg.Passkey.UserVerification,
		OTPDailyLimit:         cfg.otpDailyLimit(),
		MaxLoginAttempts:      maxLogin,
		LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		EnableRefreshThrottle: refreshThrottle,
		SecureCookies:         cfg.Cookie.Secure,
		SameSite:              sameSiteName(cfg.Cookie.SameSite),
		SessionBackend:        cfg.Session.Backend,
		DefaultMinimumACR:     cfg.MFA.DefaultMinimumACR,
		AuditEnabled:          cfg.Audit.Enabled,
	})
}

func sameSiteName(mode http.SameSite) string {
	switch mode {
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return "Default"
	}
}
