package goTrust

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/token"
)

func TestIssueSessionPersistsRecord(t *testing.T) {
	h := newTestEngine(t)
	ctx := WithDeviceID(WithClientIP(context.Background(), "203.0.113.7"), "dev-1")

	issued, err := h.engine.IssueSession(ctx, SessionRequest{
		UserID:  "u1",
		Email:   "u1@example.com",
		Methods: []string{token.MethodPasskey, token.MethodTOTP},
	})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	if issued.ACR != 3 {
		t.Fatalf("expected acr 3 for passkey+totp, got %d", issued.ACR)
	}
	if issued.AccessToken == "" || issued.RefreshToken == "" || issued.SessionID == "" {
		t.Fatalf("incomplete issued session: %+v", issued)
	}

	claims, err := h.engine.ValidateAccessToken(issued.AccessToken)
	if err != nil {
		t.Fatalf("validate access token failed: %v", err)
	}
	if claims.Subject != "u1" || claims.SessionID != issued.SessionID || claims.DeviceID != "dev-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	sessions, err := h.engine.ListActiveSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].IPAddress != "203.0.113.7" || sessions[0].ACR != 3 {
		t.Fatalf("unexpected session listing: %+v", sessions)
	}
}

func TestValidateSessionTouchesLastAccess(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	issued, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodSMSOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	h.clock.Advance(10 * time.Minute)

	status, err := h.engine.ValidateSession(ctx, issued.SessionID)
	if err != nil {
		t.Fatalf("validate session failed: %v", err)
	}
	if !status.Valid || status.UserID != "u1" {
		t.Fatalf("expected valid session, got %+v", status)
	}
	if !status.LastAccessedAt.Equal(h.clock.Now()) {
		t.Fatalf("expected last access %v, got %v", h.clock.Now(), status.LastAccessedAt)
	}
}

func TestValidateSessionUnknownIsInvalidNotError(t *testing.T) {
	h := newTestEngine(t)

	for _, id := range []string{"", "missing"} {
		status, err := h.engine.ValidateSession(context.Background(), id)
		if err != nil {
			t.Fatalf("validate %q returned error: %v", id, err)
		}
		if status.Valid {
			t.Fatalf("expected %q invalid", id)
		}
	}
}

func TestValidateSessionBackendDown(t *testing.T) {
	h := newTestEngine(t)
	issued, err := h.engine.IssueSession(context.Background(), SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	_ = h.rdb.Close()

	_, err = h.engine.ValidateSession(context.Background(), issued.SessionID)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
}

func TestRefreshSessionKeepsRefreshToken(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	issued, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodPasskey}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	h.clock.Advance(time.Minute)

	refreshed, err := h.engine.RefreshSession(ctx, issued.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if refreshed.RefreshToken != issued.RefreshToken {
		t.Fatal("expected refresh token to be returned unchanged")
	}
	if refreshed.AccessToken == issued.AccessToken {
		t.Fatal("expected a new access token")
	}
	if refreshed.ExpiresIn != 30*time.Minute {
		t.Fatalf("expected 30m expiry, got %v", refreshed.ExpiresIn)
	}

	claims, err := h.engine.ValidateAccessToken(refreshed.AccessToken)
	if err != nil {
		t.Fatalf("validate refreshed token failed: %v", err)
	}
	if claims.ACRLevel() != 2 || claims.SessionID != issued.SessionID {
		t.Fatalf("refreshed token lost session context: %+v", claims)
	}
}

func TestRefreshSessionRejectsAccessToken(t *testing.T) {
	h := newTestEngine(t)
	issued, err := h.engine.IssueSession(context.Background(), SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}

	_, err = h.engine.RefreshSession(context.Background(), issued.AccessToken)
	if !autherr.KindOf(err).IsAuthFailure() {
		t.Fatalf("expected auth failure for wrong purpose, got %v", err)
	}
}

func TestRefreshSessionAfterRevokeFails(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	issued, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	if err := h.engine.RevokeSession(ctx, issued.SessionID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	_, err = h.engine.RefreshSession(ctx, issued.RefreshToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token after revoke, got %v", err)
	}
}

func TestRefreshSessionExpiredToken(t *testing.T) {
	h := newTestEngine(t)
	issued, err := h.engine.IssueSession(context.Background(), SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	h.clock.Advance(8 * 24 * time.Hour)

	_, err = h.engine.RefreshSession(context.Background(), issued.RefreshToken)
	if autherr.KindOf(err) != autherr.KindExpired {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestRefreshSessionThrottled(t *testing.T) {
	h := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Security.MaxRefreshAttempts = 2
		b.WithConfig(cfg)
	})
	ctx := context.Background()

	issued, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := h.engine.RefreshSession(ctx, issued.RefreshToken); err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
	}
	_, err = h.engine.RefreshSession(ctx, issued.RefreshToken)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestRevokeAllSessionsCountsLiveSessions(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}}); err != nil {
			t.Fatalf("issue session %d failed: %v", i, err)
		}
	}
	other, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u2", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue other session failed: %v", err)
	}

	n, err := h.engine.RevokeAllSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked, got %d", n)
	}

	left, err := h.engine.ListActiveSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no sessions left, got %d", len(left))
	}
	if status, err := h.engine.ValidateSession(ctx, other.SessionID); err != nil || !status.Valid {
		t.Fatalf("expected other user's session untouched, got %+v err=%v", status, err)
	}
}

func TestTerminateSessionClearsCookies(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	issued, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/session/terminate", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: issued.AccessToken})
	rec := httptest.NewRecorder()

	if err := h.engine.TerminateSession(rec, req); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}

	cleared := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	for _, name := range []string{"access_token", "refresh_token", "session_id", "signup_token"} {
		if !cleared[name] {
			t.Fatalf("expected %s cleared, got %v", name, cleared)
		}
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "device_trust" {
			t.Fatalf("device trust cookie must survive terminate, got %+v", c)
		}
	}
	if status, _ := h.engine.ValidateSession(ctx, issued.SessionID); status.Valid {
		t.Fatal("expected session gone after terminate")
	}
}

func TestTerminateSessionWithoutCookies(t *testing.T) {
	h := newTestEngine(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/session/terminate", nil)

	if err := h.engine.TerminateSession(rec, req); err != nil {
		t.Fatalf("terminate without cookies failed: %v", err)
	}
	if got := len(rec.Result().Cookies()); got != 4 {
		t.Fatalf("expected 4 cleared cookies, got %d", got)
	}
}

func TestSignupTokenRoundTrip(t *testing.T) {
	sink := NewChannelSink(16)
	h := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})
	ctx := context.Background()

	tok, err := h.engine.IssueSignupToken(ctx, "new@example.com", "New User")
	if err != nil {
		t.Fatalf("issue signup token failed: %v", err)
	}
	claims, err := h.engine.ValidateSignupToken(ctx, tok)
	if err != nil {
		t.Fatalf("validate signup token failed: %v", err)
	}
	if claims.Email != "new@example.com" || claims.Name != "New User" || claims.Subject == "" {
		t.Fatalf("unexpected signup claims: %+v", claims)
	}

	issued, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	if _, err := h.engine.ValidateSignupToken(ctx, issued.AccessToken); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected access token refused as signup token, got %v", err)
	}
	if _, err := h.engine.ValidateAccessToken(tok); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected signup token refused as access token, got %v", err)
	}

	h.clock.Advance(16 * time.Minute)
	if _, err := h.engine.ValidateSignupToken(ctx, tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired signup token, got %v", err)
	}
	if _, err := h.engine.IssueSignupToken(ctx, "", "x"); autherr.KindOf(err) != autherr.KindValidationFailed {
		t.Fatalf("expected validation error for empty email, got %v", err)
	}

	h.engine.Close()
	seen := map[string]int{}
	for {
		select {
		case ev := <-sink.Events():
			seen[ev.EventType]++
			continue
		default:
		}
		break
	}
	if seen[auditEventSignupTokenIssued] != 1 || seen[auditEventSignupTokenInvalid] != 2 {
		t.Fatalf("unexpected signup audit events: %v", seen)
	}
}

func TestSignupTokenKeyUnavailable(t *testing.T) {
	h := newTestEngine(t, func(b *Builder) {
		b.WithKeySource(token.StaticKey(nil)).WithMetricsEnabled(true)
	})
	_, err := h.engine.IssueSignupToken(context.Background(), "new@example.com", "")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricTokenUnavailable]; got != 1 {
		t.Fatalf("expected one key-unavailable count, got %d", got)
	}
}

func TestTokenKeyUnavailableFailsClosed(t *testing.T) {
	h := newTestEngine(t, func(b *Builder) {
		b.WithKeySource(token.StaticKey(nil)).WithMetricsEnabled(true)
	})

	if err := h.engine.Ready(); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected not ready, got %v", err)
	}
	_, err := h.engine.IssueSession(context.Background(), SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if autherr.KindOf(err) != autherr.KindServiceUnavailable {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if _, err := h.engine.ValidateAccessToken("v4.local.garbage"); autherr.KindOf(err) != autherr.KindServiceUnavailable {
		t.Fatalf("expected service unavailable on validate, got %v", err)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricTokenUnavailable]; got != 2 {
		t.Fatalf("expected 2 token-unavailable counts, got %d", got)
	}
}

func TestConcurrentRefreshAllSucceed(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	issued, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := h.engine.RefreshSession(ctx, issued.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
}
