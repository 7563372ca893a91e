package middleware

import (
	"encoding/json"
	"net/http"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/mfa"
)

// StepUpRequiredCode is the error code of a refused sensitive operation.
const StepUpRequiredCode = "STEP_UP_REQUIRED"

type stepUpBody struct {
	Status  string     `json:"status"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	StepUp  mfa.StepUp `json:"stepUp"`
}

// RequireStepUp guards sensitive operations. When the user enforces MFA and
// the token's acr is below their minimum the request is refused with 403 and
// the methods that can raise it.
func RequireStepUp(engine *goTrust.Engine) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			res, err := engine.CheckStepUpRequired(r.Context(), claims.Subject, claims.ACRLevel())
			if err != nil {
				reject(w, err)
				return
			}
			if !res.Required {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(stepUpBody{
				Status:  "error",
				Code:    StepUpRequiredCode,
				Message: "step-up authentication required",
				StepUp:  res,
			})
		}))
	}
}
