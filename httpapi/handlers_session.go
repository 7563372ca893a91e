package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/middleware"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type validateRequest struct {
	AccessToken string `json:"accessToken"`
	SessionID   string `json:"sessionId"`
}

type validateResponse struct {
	Valid     bool       `json:"valid"`
	UserID    string     `json:"userId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	ACR       int        `json:"acr,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type revokeRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ready(); err != nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "unavailable")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "refresh", err.Error())
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken = h.engine.RefreshTokenFromRequest(r)
	}
	if req.RefreshToken == "" {
		h.writeValidationError(r.Context(), w, "refresh", "refreshToken is required")
		return
	}

	out, err := h.engine.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeMappedError(r.Context(), w, "refresh", err)
		return
	}
	h.engine.SetAccessCookie(w, out.AccessToken)
	writeSuccess(w, http.StatusOK, refreshResponse{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    int64(out.ExpiresIn / time.Second),
	})
}

// validate accepts an access token (body or cookie) or a bare session id.
// An invalid token or session is a normal answer, not an error; only an
// unavailable key or backend fails the request.
func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "validate", err.Error())
		return
	}
	if req.AccessToken == "" && req.SessionID == "" {
		req.AccessToken = h.engine.AccessTokenFromRequest(r)
		req.SessionID = h.engine.SessionIDFromRequest(r)
	}

	switch {
	case req.AccessToken != "":
		h.validateToken(w, r, req.AccessToken)
	case req.SessionID != "":
		status, err := h.engine.ValidateSession(r.Context(), req.SessionID)
		if err != nil {
			h.writeMappedError(r.Context(), w, "validate", err)
			return
		}
		resp := validateResponse{Valid: status.Valid}
		if status.Valid {
			resp.UserID = status.UserID
			resp.SessionID = req.SessionID
			resp.ExpiresAt = &status.ExpiresAt
		}
		writeSuccess(w, http.StatusOK, resp)
	default:
		h.writeValidationError(r.Context(), w, "validate", "accessToken or sessionId is required")
	}
}

func (h *Handler) validateToken(w http.ResponseWriter, r *http.Request, accessToken string) {
	claims, err := h.engine.ValidateAccessToken(accessToken)
	if err != nil {
		if autherr.KindOf(err) == autherr.KindServiceUnavailable {
			h.writeMappedError(r.Context(), w, "validate", err)
			return
		}
		writeSuccess(w, http.StatusOK, validateResponse{})
		return
	}
	status, err := h.engine.ValidateSession(r.Context(), claims.SessionID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "validate", err)
		return
	}
	if !status.Valid || status.UserID != claims.Subject {
		writeSuccess(w, http.StatusOK, validateResponse{})
		return
	}
	exp := claims.ExpiresAt.Time
	writeSuccess(w, http.StatusOK, validateResponse{
		Valid:     true,
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		ACR:       claims.ACRLevel(),
		ExpiresAt: &exp,
	})
}

// revoke ends one of the caller's own sessions.
func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var req revokeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "revoke_session", err.Error())
		return
	}
	if req.SessionID == "" {
		h.writeValidationError(r.Context(), w, "revoke_session", "sessionId is required")
		return
	}

	sessions, err := h.engine.ListActiveSessions(r.Context(), claims.Subject)
	if err != nil {
		h.writeMappedError(r.Context(), w, "revoke_session", err)
		return
	}
	owned := false
	for _, s := range sessions {
		if s.SessionID == req.SessionID {
			owned = true
			break
		}
	}
	if !owned {
		h.writeMappedError(r.Context(), w, "revoke_session", autherr.ErrNotFound)
		return
	}

	if err := h.engine.RevokeSession(r.Context(), req.SessionID); err != nil {
		h.writeMappedError(r.Context(), w, "revoke_session", err)
		return
	}
	if req.SessionID == claims.SessionID {
		h.engine.ClearAuthCookies(w)
	}
	writeMessage(w, http.StatusOK, "session revoked")
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.TerminateSession(w, r); err != nil {
		h.writeMappedError(r.Context(), w, "terminate_session", err)
		return
	}
	writeMessage(w, http.StatusOK, "session terminated")
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.subjectFor(w, r, "list_sessions")
	if !ok {
		return
	}
	sessions, err := h.engine.ListActiveSessions(r.Context(), userID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "list_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessions": sessions})
}
