package goTrust

import (
	"net/http"
	"strings"
	"time"
)

// SetSessionCookies writes the access, refresh and session id cookies for an
// issued session. Each cookie carries its own Max-Age so the browser drops
// the access token before the refresh token.
func (e *Engine) SetSessionCookies(w http.ResponseWriter, s IssuedSession) {
	now := e.now()
	c := e.config.Cookie
	http.SetCookie(w, e.cookie(c.AccessName, s.AccessToken, s.AccessExpiresAt.Sub(now)))
	http.SetCookie(w, e.cookie(c.RefreshName, s.RefreshToken, s.RefreshExpiresAt.Sub(now)))
	http.SetCookie(w, e.cookie(c.SessionName, s.SessionID, s.RefreshExpiresAt.Sub(now)))
}

// SetAccessCookie replaces the access token cookie after a refresh or a
// step-up.
func (e *Engine) SetAccessCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, e.cookie(e.config.Cookie.AccessName, accessToken, e.config.Token.AccessTTL))
}

// SetSignupCookie writes a signup token cookie that lives as long as the
// token.
func (e *Engine) SetSignupCookie(w http.ResponseWriter, signupToken string) {
	http.SetCookie(w, e.cookie(e.config.Cookie.SignupName, signupToken, e.config.Token.SignupTTL))
}

// SetDeviceTrustCookie writes the long-lived device trust cookie.
func (e *Engine) SetDeviceTrustCookie(w http.ResponseWriter, trustToken string) {
	http.SetCookie(w, e.cookie(e.config.Cookie.DeviceTrustName, trustToken, e.config.Token.DeviceTrustTTL))
}

// ClearAuthCookies expires the access, refresh, session and signup cookies.
// The device trust cookie survives logout.
func (e *Engine) ClearAuthCookies(w http.ResponseWriter) {
	c := e.config.Cookie
	for _, name := range []string{c.AccessName, c.RefreshName, c.SessionName, c.SignupName} {
		http.SetCookie(w, e.expired(name))
	}
}

// ClearDeviceTrustCookie expires the device trust cookie.
func (e *Engine) ClearDeviceTrustCookie(w http.ResponseWriter) {
	http.SetCookie(w, e.expired(e.config.Cookie.DeviceTrustName))
}

func (e *Engine) cookie(name, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	c := e.baseCookie(name)
	c.Value = value
	c.MaxAge = maxAge
	return c
}

// expired must carry the same Domain, Path and SameSite as the cookie it
// clears or the browser keeps the original.
func (e *Engine) expired(name string) *http.Cookie {
	c := e.baseCookie(name)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

func (e *Engine) baseCookie(name string) *http.Cookie {
	cfg := e.config.Cookie
	return &http.Cookie{
		Name:     name,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	}
}

// AccessTokenFromRequest returns the bearer token of r, falling back to the
// access token cookie.
func (e *Engine) AccessTokenFromRequest(r *http.Request) string {
	const bearer = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearer) {
		return strings.TrimSpace(h[len(bearer):])
	}
	if c, err := r.Cookie(e.config.Cookie.AccessName); err == nil {
		return c.Value
	}
	return ""
}

// SessionIDFromRequest returns the session id cookie of r, or "".
func (e *Engine) SessionIDFromRequest(r *http.Request) string {
	if c, err := r.Cookie(e.config.Cookie.SessionName); err == nil {
		return c.Value
	}
	return ""
}

// RefreshTokenFromRequest returns the refresh token cookie of r, or "".
func (e *Engine) RefreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(e.config.Cookie.RefreshName); err == nil {
		return c.Value
	}
	return ""
}
