package goTrust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/otp"
	"github.com/MrEthical07/goTrust/passkey"
	"github.com/MrEthical07/goTrust/token"
	"github.com/google/uuid"
)

// BeginPasskeyLogin issues an authentication challenge.
func (e *Engine) BeginPasskeyLogin(ctx context.Context) (passkey.Options, error) {
	return e.passkeys.BeginAuthentication(ctx)
}

// LoginWithPasskey verifies an assertion and opens a session for the
// credential's owner. Failed attempts count against the credential id and
// the client IP.
func (e *Engine) LoginWithPasskey(ctx context.Context, a passkey.Assertion) (IssuedSession, error) {
	ip := clientIPFromContext(ctx)
	if err := e.checkLogin(ctx, a.CredentialID, ip); err != nil {
		return IssuedSession{}, err
	}

	start := time.Now()
	res, err := e.passkeys.CompleteAuthentication(ctx, a)
	e.metricObserve(MetricPasskeyLoginLatency, time.Since(start))
	if err != nil {
		e.loginFailed(ctx, a.CredentialID, ip, token.MethodPasskey, res.UserID, err)
		e.metricInc(MetricPasskeyLoginFailure)
		return IssuedSession{}, err
	}
	e.metricInc(MetricPasskeyLoginSuccess)
	return e.completeLogin(ctx, a.CredentialID, res.UserID, "", token.MethodPasskey)
}

// SendLoginOTP sends a login code to an enrolled phone number or email.
func (e *Engine) SendLoginOTP(ctx context.Context, kind authmethod.Kind, target string) (otp.SendResult, error) {
	res, err := e.otp.SendOtp(ctx, kind, target)
	e.recordSend(ctx, "", kind, err)
	return res, err
}

// LoginWithOTP verifies a login code and opens a session.
func (e *Engine) LoginWithOTP(ctx context.Context, kind authmethod.Kind, target, code string) (IssuedSession, error) {
	ip := clientIPFromContext(ctx)
	if err := e.checkLogin(ctx, target, ip); err != nil {
		return IssuedSession{}, err
	}

	method := token.MethodName(kind)
	m, err := e.otp.VerifyOtp(ctx, kind, target, code)
	if err != nil {
		e.loginFailed(ctx, target, ip, method, "", err)
		e.metricInc(MetricOTPLoginFailure)
		return IssuedSession{}, err
	}
	e.metricInc(MetricOTPLoginSuccess)

	email := ""
	if meta, ok := m.Metadata.(authmethod.EmailOtp); ok {
		email = meta.Email
	}
	return e.completeLogin(ctx, target, m.UserID, email, method)
}

// LoginWithTOTP checks code against the user's authenticator apps and opens
// a session. Failures are throttled per user.
func (e *Engine) LoginWithTOTP(ctx context.Context, userID, code string) (IssuedSession, error) {
	ip := clientIPFromContext(ctx)
	if err := e.checkLogin(ctx, userID, ip); err != nil {
		return IssuedSession{}, err
	}
	if _, err := e.verifyTOTP(ctx, userID, code); err != nil {
		e.loginFailed(ctx, userID, ip, token.MethodTOTP, userID, err)
		e.metricInc(MetricTOTPLoginFailure)
		return IssuedSession{}, err
	}
	e.metricInc(MetricTOTPLoginSuccess)
	return e.completeLogin(ctx, userID, userID, "", token.MethodTOTP)
}

// verifyTOTP tries every usable TOTP method of userID and stamps the one
// that matched. A code is accepted once: its time step must be later than
// the last step accepted for that method.
func (e *Engine) verifyTOTP(ctx context.Context, userID, code string) (authmethod.Method, error) {
	if err := e.totpLimiter.Check(ctx, userID); err != nil {
		return authmethod.Method{}, err
	}
	methods, err := e.methods.ListByUser(ctx, userID)
	if err != nil {
		return authmethod.Method{}, err
	}

	now := e.now()
	for _, m := range methods {
		meta, ok := m.Metadata.(authmethod.Totp)
		if !ok || !m.Usable() {
			continue
		}
		valid, counter, err := e.totp.VerifyCode(meta.SecretKey, code, now)
		if err != nil || !valid {
			continue
		}
		updated, err := e.methods.UpdateIf(ctx, m.ID, totpStepUnused(counter), func(cur authmethod.Method) authmethod.Method {
			return consumeTOTPStep(cur, counter, now)
		})
		if errors.Is(err, autherr.ErrInvalidCredential) {
			e.logger.InfoContext(ctx, "totp code replayed",
				"operation", "verify_totp",
				"user_id", userID,
				"method_id", m.ID,
			)
			break
		}
		if err != nil {
			return authmethod.Method{}, err
		}
		if err := e.totpLimiter.Reset(ctx, userID); err != nil {
			e.logger.WarnContext(ctx, "totp limiter reset failed",
				"operation", "verify_totp",
				"user_id", userID,
				"error", err,
			)
		}
		return updated, nil
	}

	if err := e.totpLimiter.RecordFailure(ctx, userID); err != nil {
		return authmethod.Method{}, err
	}
	return authmethod.Method{}, fmt.Errorf("%w: totp code rejected", autherr.ErrInvalidCredential)
}

func totpStepUnused(counter int64) authmethod.Predicate {
	return func(cur authmethod.Method) error {
		meta, ok := cur.Metadata.(authmethod.Totp)
		if !ok || counter <= meta.LastUsedCounter {
			return fmt.Errorf("%w: totp code already used", autherr.ErrInvalidCredential)
		}
		return nil
	}
}

func consumeTOTPStep(cur authmethod.Method, counter int64, now time.Time) authmethod.Method {
	meta := cur.Metadata.(authmethod.Totp)
	meta.LastUsedCounter = counter
	cur.Metadata = meta
	cur.LastUsedAt = now
	return cur
}

func (e *Engine) checkLogin(ctx context.Context, identifier, ip string) error {
	err := e.rateLimiter.CheckLogin(ctx, identifier, ip)
	if err == nil {
		return nil
	}
	if errors.Is(err, autherr.ErrRateLimited) {
		e.metricInc(MetricLoginRateLimited)
		e.emitRateLimit(ctx, "login", err)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", "", err, nil)
	}
	return err
}

// loginFailed counts a failed factor against identifier. Only factor
// rejections count; infrastructure errors do not burn the budget.
func (e *Engine) loginFailed(ctx context.Context, identifier, ip, method, userID string, cause error) {
	switch autherr.KindOf(cause) {
	case autherr.KindInvalidCredential, autherr.KindNotFound, autherr.KindExpired:
		if err := e.rateLimiter.IncrementLogin(ctx, identifier, ip); err != nil {
			e.logger.WarnContext(ctx, "login limiter increment failed",
				"operation", "login",
				"method", method,
				"error", err,
			)
		}
	}
	e.logger.InfoContext(ctx, "login rejected",
		"operation", "login",
		"outcome", "failure",
		"method", method,
		"kind", autherr.KindOf(cause).String(),
	)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", method, cause, nil)
}

func (e *Engine) completeLogin(ctx context.Context, identifier, userID, email, method string) (IssuedSession, error) {
	if err := e.rateLimiter.ResetLogin(ctx, identifier); err != nil {
		e.logger.WarnContext(ctx, "login limiter reset failed",
			"operation", "login",
			"method", method,
			"error", err,
		)
	}
	issued, err := e.IssueSession(ctx, SessionRequest{UserID: userID, Email: email, Methods: []string{method}})
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", method, err, nil)
		return IssuedSession{}, err
	}
	e.logger.InfoContext(ctx, "login succeeded",
		"operation", "login",
		"outcome", "success",
		"method", method,
		"user_id", userID,
		"acr", issued.ACR,
	)
	e.emitAudit(ctx, auditEventLoginSuccess, true, userID, issued.SessionID, method, nil, nil)
	return issued, nil
}

func (e *Engine) recordSend(ctx context.Context, userID string, kind authmethod.Kind, err error) {
	method := token.MethodName(kind)
	if err != nil {
		e.metricInc(MetricOTPSendFailure)
		if errors.Is(err, autherr.ErrRateLimited) {
			e.emitRateLimit(ctx, "otp_send", err)
		}
		e.emitAudit(ctx, auditEventOTPSendFailure, false, userID, "", method, err, nil)
		return
	}
	e.metricInc(MetricOTPSent)
	e.emitAudit(ctx, auditEventOTPSent, true, userID, "", method, nil, nil)
}

/*
====================================
REGISTRATION
====================================
*/

// TOTPEnrollment is a pending authenticator-app method. Secret and URI are
// shown to the user once.
type TOTPEnrollment struct {
	MethodID string `json:"methodId"`
	Secret   string `json:"secret"`
	URI      string `json:"uri"`
}

func (e *Engine) BeginPasskeyRegistration(ctx context.Context, userID, userName string) (passkey.Options, error) {
	return e.passkeys.BeginRegistration(ctx, userID, userName)
}

// CompletePasskeyRegistration stores the credential for the user the
// registration challenge was issued to.
func (e *Engine) CompletePasskeyRegistration(ctx context.Context, a passkey.Attestation) (authmethod.Method, error) {
	m, err := e.passkeys.CompleteRegistration(ctx, a)
	if err != nil {
		e.emitAudit(ctx, auditEventMethodRegistered, false, "", "", token.MethodPasskey, err, nil)
		return authmethod.Method{}, err
	}
	e.methodsChanged(m.UserID)
	e.emitAudit(ctx, auditEventMethodRegistered, true, m.UserID, "", token.MethodPasskey, nil, nil)
	return m, nil
}

// BeginOTPRegistration enrolls a phone number or email and sends the first
// code.
func (e *Engine) BeginOTPRegistration(ctx context.Context, userID string, kind authmethod.Kind, target string) (authmethod.Method, otp.SendResult, error) {
	m, res, err := e.otp.BeginRegistration(ctx, userID, kind, target)
	e.recordSend(ctx, userID, kind, err)
	return m, res, err
}

func (e *Engine) CompleteOTPRegistration(ctx context.Context, methodID, code string) (authmethod.Method, error) {
	m, err := e.otp.CompleteRegistration(ctx, methodID, code)
	if err != nil {
		return authmethod.Method{}, err
	}
	e.methodsChanged(m.UserID)
	e.emitAudit(ctx, auditEventMethodRegistered, true, m.UserID, "", token.MethodName(m.Kind), nil, nil)
	return m, nil
}

// BeginTOTPRegistration creates a pending authenticator-app method with a
// fresh secret. account labels the entry in the app.
func (e *Engine) BeginTOTPRegistration(ctx context.Context, userID, account string) (TOTPEnrollment, error) {
	if userID == "" {
		return TOTPEnrollment{}, autherr.Validation("user id is required")
	}
	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return TOTPEnrollment{}, err
	}
	m := authmethod.New(uuid.NewString(), userID, authmethod.Totp{
		SecretKey: secret,
		Digits:    e.config.TOTP.Digits,
		Period:    e.config.TOTP.Period,
	}, e.now())
	if err := e.methods.Create(ctx, m); err != nil {
		return TOTPEnrollment{}, err
	}
	if account == "" {
		account = userID
	}
	return TOTPEnrollment{MethodID: m.ID, Secret: secret, URI: e.totp.ProvisionURI(secret, account)}, nil
}

// CompleteTOTPRegistration activates a pending authenticator-app method once
// the user proves possession with a valid code.
func (e *Engine) CompleteTOTPRegistration(ctx context.Context, userID, methodID, code string) (authmethod.Method, error) {
	if err := e.totpLimiter.Check(ctx, userID); err != nil {
		return authmethod.Method{}, err
	}
	m, err := e.methods.Get(ctx, methodID)
	if err != nil {
		return authmethod.Method{}, err
	}
	meta, ok := m.Metadata.(authmethod.Totp)
	if !ok || m.UserID != userID {
		return authmethod.Method{}, fmt.Errorf("totp method %s: %w", methodID, autherr.ErrNotFound)
	}
	if m.Verified {
		return m, nil
	}

	now := e.now()
	valid, counter, err := e.totp.VerifyCode(meta.SecretKey, code, now)
	if err != nil || !valid {
		if lerr := e.totpLimiter.RecordFailure(ctx, userID); lerr != nil {
			return authmethod.Method{}, lerr
		}
		return authmethod.Method{}, fmt.Errorf("%w: totp code rejected", autherr.ErrInvalidCredential)
	}

	updated, err := e.methods.UpdateIf(ctx, methodID, totpStepUnused(counter), func(cur authmethod.Method) authmethod.Method {
		cur = consumeTOTPStep(cur, counter, now)
		cur.Verified = true
		cur.Active = true
		return cur
	})
	if err != nil {
		return authmethod.Method{}, err
	}
	e.methodsChanged(userID)
	e.emitAudit(ctx, auditEventMethodRegistered, true, userID, "", token.MethodTOTP, nil, nil)
	return updated, nil
}

/*
====================================
STEP-UP
====================================
*/

// StepUpWithTOTP verifies a TOTP code for the holder of accessToken and
// returns a re-minted access token whose amr includes totp.
func (e *Engine) StepUpWithTOTP(ctx context.Context, accessToken, code string) (string, *token.Claims, error) {
	claims, err := e.ValidateAccessToken(accessToken)
	if err != nil {
		return "", nil, err
	}
	if _, err := e.verifyTOTP(ctx, claims.Subject, code); err != nil {
		e.emitAudit(ctx, auditEventStepUpCompleted, false, claims.Subject, claims.SessionID, token.MethodTOTP, err, nil)
		return "", nil, err
	}
	return e.completeStepUp(ctx, accessToken, token.MethodTOTP)
}

// StepUpWithOTP verifies a code sent to one of the caller's own methods.
func (e *Engine) StepUpWithOTP(ctx context.Context, accessToken, methodID, code string) (string, *token.Claims, error) {
	claims, err := e.ValidateAccessToken(accessToken)
	if err != nil {
		return "", nil, err
	}
	m, err := e.methods.Get(ctx, methodID)
	if err != nil {
		return "", nil, err
	}
	if m.UserID != claims.Subject {
		return "", nil, fmt.Errorf("method %s: %w", methodID, autherr.ErrNotFound)
	}
	if _, err := e.otp.VerifyForMethod(ctx, methodID, code); err != nil {
		e.emitAudit(ctx, auditEventStepUpCompleted, false, claims.Subject, claims.SessionID, token.MethodName(m.Kind), err, nil)
		return "", nil, err
	}
	return e.completeStepUp(ctx, accessToken, token.MethodName(m.Kind))
}

// SendStepUpOTP sends a code to one of the caller's own methods.
func (e *Engine) SendStepUpOTP(ctx context.Context, accessToken, methodID string) (otp.SendResult, error) {
	claims, err := e.ValidateAccessToken(accessToken)
	if err != nil {
		return otp.SendResult{}, err
	}
	m, err := e.methods.Get(ctx, methodID)
	if err != nil {
		return otp.SendResult{}, err
	}
	if m.UserID != claims.Subject || !m.Usable() {
		return otp.SendResult{}, fmt.Errorf("method %s: %w", methodID, autherr.ErrNotFound)
	}
	res, err := e.otp.SendForMethod(ctx, methodID)
	e.recordSend(ctx, claims.Subject, m.Kind, err)
	return res, err
}

func (e *Engine) completeStepUp(ctx context.Context, accessToken, method string) (string, *token.Claims, error) {
	tok, claims, err := e.tokens.AddAuthenticationMethod(accessToken, method)
	if err != nil {
		return "", nil, err
	}
	e.emitAudit(ctx, auditEventStepUpCompleted, true, claims.Subject, claims.SessionID, method, nil, func() map[string]string {
		return map[string]string{"acr": claims.ACR}
	})
	return tok, claims, nil
}
