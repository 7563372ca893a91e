package middleware

import (
	"net/http"

	goTrust "github.com/MrEthical07/goTrust"
)

// RequireSession is Guard plus a session backend lookup, so a revoked
// session is refused even while its access token is unexpired.
func RequireSession(engine *goTrust.Engine) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			status, err := engine.ValidateSession(r.Context(), claims.SessionID)
			if err != nil {
				reject(w, err)
				return
			}
			if !status.Valid || status.UserID != claims.Subject {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
