package goTrust

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/session"
	"github.com/MrEthical07/goTrust/token"
	"github.com/google/uuid"
)

// SessionRequest describes a completed login.
type SessionRequest struct {
	UserID  string
	Email   string
	Methods []string
}

// IssuedSession is the result of a successful login.
type IssuedSession struct {
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId"`
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	ACR              int       `json:"acr"`
	Methods          []string  `json:"methods"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// SessionStatus is the outcome of ValidateSession. Invalid sessions carry
// only Valid=false.
type SessionStatus struct {
	Valid          bool      `json:"valid"`
	UserID         string    `json:"userId,omitempty"`
	Email          string    `json:"email,omitempty"`
	ExpiresAt      time.Time `json:"expiresAt,omitempty"`
	LastAccessedAt time.Time `json:"lastAccessedAt,omitempty"`
}

// RefreshedSession carries the new access token. RefreshToken is the one
// presented; it is not rotated.
type RefreshedSession struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    time.Duration `json:"-"`
	SessionID    string        `json:"-"`
}

// SessionInfo is the listing view of one session.
type SessionInfo struct {
	SessionID      string    `json:"sessionId"`
	IPAddress      string    `json:"ipAddress"`
	DeviceID       string    `json:"deviceId,omitempty"`
	ACR            int       `json:"acr"`
	IssuedAt       time.Time `json:"issuedAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// IssueSession mints the token pair for a completed login and persists the
// session record. The ACR is computed from req.Methods. Client IP and device
// id are taken from ctx.
func (e *Engine) IssueSession(ctx context.Context, req SessionRequest) (IssuedSession, error) {
	if e == nil || e.tokens == nil {
		return IssuedSession{}, ErrEngineNotReady
	}
	acr := token.CalculateACR(req.Methods, false)
	ip := clientIPFromContext(ctx)
	deviceID := deviceIDFromContext(ctx)

	pair, err := e.tokens.IssueSessionTokenPair(token.SessionRequest{
		UserID:    req.UserID,
		Email:     req.Email,
		Methods:   req.Methods,
		ACR:       acr,
		DeviceID:  deviceID,
		IP:        ip,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		e.noteTokenError(err)
		return IssuedSession{}, err
	}

	now := e.now()
	rec := session.Session{
		SessionID:      pair.SessionID,
		UserID:         req.UserID,
		Email:          req.Email,
		DeviceID:       deviceID,
		IPAddress:      ip,
		ACR:            uint8(acr),
		IssuedAt:       now,
		ExpiresAt:      pair.RefreshExpiresAt,
		LastAccessedAt: now,
	}
	if err := e.sessions.Save(ctx, rec); err != nil {
		e.logger.ErrorContext(ctx, "session save failed",
			"operation", "issue_session",
			"outcome", "failure",
			"user_id", req.UserID,
			"error", err,
		)
		return IssuedSession{}, err
	}

	e.metricInc(MetricSessionCreated)
	return IssuedSession{
		SessionID:        pair.SessionID,
		UserID:           req.UserID,
		AccessToken:      pair.Access,
		RefreshToken:     pair.Refresh,
		ACR:              acr,
		Methods:          token.DecodeAMR(token.EncodeAMR(req.Methods)),
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}, nil
}

// ValidateSession checks a session id (the cookie-bound path) and stamps
// LastAccessedAt. Missing, expired and revoked sessions are reported as
// Valid=false with a nil error; backend failures are returned.
func (e *Engine) ValidateSession(ctx context.Context, sessionID string) (SessionStatus, error) {
	if e == nil || e.sessions == nil {
		return SessionStatus{}, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metricObserve(MetricValidateLatency, time.Since(start)) }()

	if sessionID == "" {
		return SessionStatus{}, nil
	}
	s, err := e.sessions.Touch(ctx, sessionID, e.now())
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return SessionStatus{}, nil
		}
		return SessionStatus{}, err
	}
	e.metricInc(MetricSessionValidated)
	return SessionStatus{
		Valid:          true,
		UserID:         s.UserID,
		Email:          s.Email,
		ExpiresAt:      s.ExpiresAt,
		LastAccessedAt: s.LastAccessedAt,
	}, nil
}

// ValidateAccessToken opens an access token. It performs no I/O and does not
// consult the session backend.
func (e *Engine) ValidateAccessToken(tok string) (*token.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.ValidateAccessToken(tok)
	if err != nil {
		e.noteTokenError(err)
		return nil, err
	}
	return claims, nil
}

// IssueSignupToken mints a signup token for an email that has not finished
// registration. The token's subject is the user id to register under.
func (e *Engine) IssueSignupToken(ctx context.Context, email, name string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	tok, err := e.tokens.IssueSignupToken(email, name)
	if err != nil {
		e.noteTokenError(err)
		return "", err
	}
	e.emitAudit(ctx, auditEventSignupTokenIssued, true, "", "", "", nil, nil)
	return tok, nil
}

// ValidateSignupToken opens a signup token. Expired tokens and tokens minted
// for another purpose are rejected.
func (e *Engine) ValidateSignupToken(ctx context.Context, tok string) (*token.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.ValidateSignupToken(tok)
	if err != nil {
		e.noteTokenError(err)
		e.emitAudit(ctx, auditEventSignupTokenInvalid, false, "", "", "", err, nil)
		return nil, err
	}
	return claims, nil
}

// RefreshSession mints a new access token from a refresh token. The session
// behind the token must still exist, so a revoked session cannot be
// refreshed.
func (e *Engine) RefreshSession(ctx context.Context, refreshToken string) (RefreshedSession, error) {
	if e == nil || e.tokens == nil {
		return RefreshedSession{}, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metricObserve(MetricRefreshLatency, time.Since(start)) }()

	access, claims, err := e.tokens.RefreshAccessToken(refreshToken)
	if err != nil {
		e.noteTokenError(err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", err, nil)
		return RefreshedSession{}, err
	}

	if err := e.rateLimiter.CheckRefresh(ctx, claims.SessionID); err != nil {
		if errors.Is(err, autherr.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitRateLimit(ctx, "refresh", err)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, claims.Subject, claims.SessionID, "", err, nil)
		}
		return RefreshedSession{}, err
	}

	s, err := e.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			err = fmt.Errorf("%w: session revoked", autherr.ErrInvalidToken)
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.SessionID, "", err, nil)
		return RefreshedSession{}, err
	}
	if s.UserID != claims.Subject {
		e.metricInc(MetricRefreshFailure)
		return RefreshedSession{}, fmt.Errorf("%w: session owner mismatch", autherr.ErrInvalidToken)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.Subject, claims.SessionID, "", nil, nil)
	return RefreshedSession{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    e.tokens.AccessTTL(),
		SessionID:    claims.SessionID,
	}, nil
}

// RevokeSession deletes one session. Revoking an unknown session succeeds.
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if sessionID == "" {
		return autherr.Validation("session id is required")
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventSessionRevoked, true, "", sessionID, "", nil, nil)
	return nil
}

// RevokeAllSessions deletes every session of userID and returns how many
// live sessions were removed.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, autherr.Validation("user id is required")
	}
	n, err := e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	e.metricInc(MetricLogoutAll)
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventSessionsRevokedAll, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"count": fmt.Sprint(n)}
	})
	return n, nil
}

// TerminateSession ends the session carried by r and clears the access,
// refresh, session and signup cookies on w. The device trust cookie is left
// in place; [Engine.ClearDeviceTrustCookie] removes it. The session
// id is read from the session cookie, falling back to the sid claim of the
// access token cookie. Cookies are cleared even when no session could be
// found.
func (e *Engine) TerminateSession(w http.ResponseWriter, r *http.Request) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	defer e.ClearAuthCookies(w)

	sessionID := ""
	if c, err := r.Cookie(e.config.Cookie.SessionName); err == nil {
		sessionID = c.Value
	}
	if sessionID == "" {
		if c, err := r.Cookie(e.config.Cookie.AccessName); err == nil {
			if claims, err := e.tokens.ValidateAccessToken(c.Value); err == nil {
				sessionID = claims.SessionID
			}
		}
	}
	if sessionID == "" {
		return nil
	}
	return e.RevokeSession(r.Context(), sessionID)
}

// ListActiveSessions returns the live sessions of userID.
func (e *Engine) ListActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, autherr.Validation("user id is required")
	}
	all, err := e.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := make([]SessionInfo, 0, len(all))
	for _, s := range all {
		if s.Expired(now) {
			continue
		}
		out = append(out, SessionInfo{
			SessionID:      s.SessionID,
			IPAddress:      s.IPAddress,
			DeviceID:       s.DeviceID,
			ACR:            int(s.ACR),
			IssuedAt:       s.IssuedAt,
			LastAccessedAt: s.LastAccessedAt,
			ExpiresAt:      s.ExpiresAt,
		})
	}
	return out, nil
}
