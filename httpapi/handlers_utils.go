package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/goTrust/middleware"
	"github.com/MrEthical07/goTrust/token"
)

const maxBodyBytes = 1 << 16

// decodeBody decodes a single JSON value. An empty body leaves dst
// untouched so tokens may come from cookies instead.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// subjectFor resolves the userId query parameter against the caller's
// token. An absent parameter means the caller; another user's id is refused.
func (h *Handler) subjectFor(w http.ResponseWriter, r *http.Request, operation string) (string, *token.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid credential")
		return "", nil, false
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		return claims.Subject, claims, true
	}
	if userID != claims.Subject {
		h.logOperationError(r.Context(), operation, http.StatusForbidden, CodeForbidden, nil)
		writeError(w, http.StatusForbidden, CodeForbidden, "forbidden")
		return "", nil, false
	}
	return userID, claims, true
}
