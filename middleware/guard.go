package middleware

import (
	"context"
	"net/http"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/token"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the access token claims stored by a guard.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return c, ok
}

// Guard admits requests carrying a valid access token in the Authorization
// header or the access cookie. Validation is stateless: the session backend
// is not consulted.
func Guard(engine *goTrust.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(engine, r)
			if err != nil {
				reject(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func authenticate(engine *goTrust.Engine, r *http.Request) (*token.Claims, error) {
	if engine == nil {
		return nil, goTrust.ErrEngineNotReady
	}
	tok := engine.AccessTokenFromRequest(r)
	if tok == "" {
		return nil, autherr.ErrInvalidToken
	}
	return engine.ValidateAccessToken(tok)
}

func withClaims(ctx context.Context, c *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// reject keeps key and backend outages distinguishable from bad tokens.
func reject(w http.ResponseWriter, err error) {
	if autherr.KindOf(err) == autherr.KindServiceUnavailable {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
