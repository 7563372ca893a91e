package security

import "time"

// Report is the security posture of a configured engine.
type Report struct {
	ProductionMode     bool
	TokenProtocol      string
	TokenKeyAvailable  bool
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	ChallengeTTL       time.Duration
	UserVerification   string
	OTPDailyLimit      int
	RateLimitingActive bool
	SecureCookies      bool
	SameSite           string
	SessionBackend     string
	DefaultMinimumACR  int
	AuditEnabled       bool
	Warnings           []string
}

// ReportInput is the flattened configuration BuildReport reads.
type ReportInput struct {
	ProductionMode        bool
	TokenKeyAvailable     bool
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	ChallengeTTL          time.Duration
	UserVerification      string
	OTPDailyLimit         int
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableRefreshThrottle bool
	SecureCookies         bool
	SameSite              string
	SessionBackend        string
	DefaultMinimumACR     int
	AuditEnabled          bool
}

const tokenProtocol = "v4.local"

// BuildReport derives the posture and flags settings that weaken it.
func BuildReport(input ReportInput) Report {
	rateLimiting := input.MaxLoginAttempts > 0 && input.LoginCooldownDuration > 0

	r := Report{
		ProductionMode:     input.ProductionMode,
		TokenProtocol:      tokenProtocol,
		TokenKeyAvailable:  input.TokenKeyAvailable,
		AccessTTL:          input.AccessTTL,
		RefreshTTL:         input.RefreshTTL,
		ChallengeTTL:       input.ChallengeTTL,
		UserVerification:   input.UserVerification,
		OTPDailyLimit:      input.OTPDailyLimit,
		RateLimitingActive: rateLimiting || input.EnableRefreshThrottle,
		SecureCookies:      input.SecureCookies,
		SameSite:           input.SameSite,
		SessionBackend:     input.SessionBackend,
		DefaultMinimumACR:  input.DefaultMinimumACR,
		AuditEnabled:       input.AuditEnabled,
	}

	if !input.TokenKeyAvailable {
		r.Warnings = append(r.Warnings, "token key unavailable: every token operation fails")
	}
	if !input.SecureCookies {
		r.Warnings = append(r.Warnings, "cookies are sent without the Secure attribute")
	}
	if !rateLimiting {
		r.Warnings = append(r.Warnings, "login rate limiting is disabled")
	}
	if input.UserVerification != "required" {
		r.Warnings = append(r.Warnings, "passkey user verification is not required")
	}
	if input.AccessTTL > 30*time.Minute {
		r.Warnings = append(r.Warnings, "access tokens live longer than 30m")
	}
	return r
}
