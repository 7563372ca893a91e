package internaldefs

import (
	goTrust "github.com/MrEthical07/goTrust"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goTrust.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goTrust.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goTrust.MetricPasskeyLoginSuccess, Name: "gotrust_passkey_login_success_total", Help: "Successful passkey assertions."},
	{ID: goTrust.MetricPasskeyLoginFailure, Name: "gotrust_passkey_login_failure_total", Help: "Rejected passkey assertions."},
	{ID: goTrust.MetricOTPSent, Name: "gotrust_otp_sent_total", Help: "One-time codes handed to a delivery channel."},
	{ID: goTrust.MetricOTPSendFailure, Name: "gotrust_otp_send_failure_total", Help: "One-time codes the channel failed to deliver."},
	{ID: goTrust.MetricOTPLoginSuccess, Name: "gotrust_otp_login_success_total", Help: "Successful one-time code verifications."},
	{ID: goTrust.MetricOTPLoginFailure, Name: "gotrust_otp_login_failure_total", Help: "Rejected one-time code verifications."},
	{ID: goTrust.MetricTOTPLoginSuccess, Name: "gotrust_totp_login_success_total", Help: "Successful authenticator app verifications."},
	{ID: goTrust.MetricTOTPLoginFailure, Name: "gotrust_totp_login_failure_total", Help: "Rejected authenticator app verifications."},
	{ID: goTrust.MetricRefreshSuccess, Name: "gotrust_refresh_success_total", Help: "Successful access token refreshes."},
	{ID: goTrust.MetricRefreshFailure, Name: "gotrust_refresh_failure_total", Help: "Failed access token refreshes."},
	{ID: goTrust.MetricRefreshRateLimited, Name: "gotrust_refresh_rate_limited_total", Help: "Refreshes rejected by the per-session throttle."},
	{ID: goTrust.MetricLoginRateLimited, Name: "gotrust_login_rate_limited_total", Help: "Login attempts rejected by the limiter."},
	{ID: goTrust.MetricRateLimitHit, Name: "gotrust_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: goTrust.MetricSessionCreated, Name: "gotrust_session_created_total", Help: "Created sessions."},
	{ID: goTrust.MetricSessionValidated, Name: "gotrust_session_validated_total", Help: "Session lookups that found a live session."},
	{ID: goTrust.MetricSessionInvalidated, Name: "gotrust_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: goTrust.MetricLogout, Name: "gotrust_logout_total", Help: "Single-session logout operations."},
	{ID: goTrust.MetricLogoutAll, Name: "gotrust_logout_all_total", Help: "Logout-all operations."},
	{ID: goTrust.MetricStepUpRequired, Name: "gotrust_step_up_required_total", Help: "Checks that demanded a step-up."},
	{ID: goTrust.MetricMFAEnforcementChanged, Name: "gotrust_mfa_enforcement_changed_total", Help: "MFA enforcement toggles."},
	{ID: goTrust.MetricMethodRemoved, Name: "gotrust_method_removed_total", Help: "Removed authentication methods."},
	{ID: goTrust.MetricDeviceTrustEstablished, Name: "gotrust_device_trust_established_total", Help: "Device trust tokens issued."},
	{ID: goTrust.MetricDeviceTrustRevoked, Name: "gotrust_device_trust_revoked_total", Help: "Device trust revocations."},
	{ID: goTrust.MetricDeviceAutoBlocked, Name: "gotrust_device_auto_blocked_total", Help: "Devices blocked for a critical risk score."},
	{ID: goTrust.MetricTokenUnavailable, Name: "gotrust_token_key_unavailable_total", Help: "Token operations refused because no key was loaded."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goTrust.MetricValidateLatency, Name: "gotrust_validate_latency_seconds", Help: "Session validation latency."},
	{ID: goTrust.MetricRefreshLatency, Name: "gotrust_refresh_latency_seconds", Help: "Access token refresh latency."},
	{ID: goTrust.MetricPasskeyLoginLatency, Name: "gotrust_passkey_login_latency_seconds", Help: "Passkey assertion verification latency."},
}

// HistogramBounds are the upper bounds of the engine buckets in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into le-style running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
