package goTrust

import (
	"context"

	"github.com/MrEthical07/goTrust/autherr"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventOTPSent               = "otp_sent"
	auditEventOTPSendFailure        = "otp_send_failure"
	auditEventMethodRegistered      = "method_registered"
	auditEventMethodRemoved         = "method_removed"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshRateLimited    = "refresh_rate_limited"
	auditEventSessionRevoked        = "session_revoked"
	auditEventSessionsRevokedAll    = "sessions_revoked_all"
	auditEventStepUpRequired        = "step_up_required"
	auditEventStepUpCompleted       = "step_up_completed"
	auditEventMFAEnforcementChanged = "mfa_enforcement_changed"
	auditEventMFAMinimumACRChanged  = "mfa_minimum_acr_changed"
	auditEventMFAAutoDisabled       = "mfa_enforcement_auto_disabled"
	auditEventDeviceTrustEstablish  = "device_trust_established"
	auditEventDeviceTrustRevoked    = "device_trust_revoked"
	auditEventDeviceAutoBlocked     = "device_auto_blocked"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
	auditEventSignupTokenIssued     = "signup_token_issued"
	auditEventSignupTokenInvalid    = "signup_token_invalid"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	method string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		DeviceID:  deviceIDFromContext(ctx),
		Method:    method,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = autherr.KindOf(err).String()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, err error) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", "", err, func() map[string]string {
		m := map[string]string{"scope": scope}
		if d, ok := autherr.RetryAfter(err); ok {
			m["retry_after"] = d.String()
		}
		return m
	})
}
