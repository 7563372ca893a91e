package httpapi

import (
	"net/http"

	"github.com/MrEthical07/goTrust/mfa"
)

type enforcementRequest struct {
	Enforced *bool `json:"enforced"`
}

func (h *Handler) securityOverview(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.subjectFor(w, r, "security_overview")
	if !ok {
		return
	}
	overview, err := h.engine.SecurityOverview(r.Context(), userID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "security_overview", err)
		return
	}
	writeSuccess(w, http.StatusOK, overview)
}

func (h *Handler) updateMfaEnforcement(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.subjectFor(w, r, "update_mfa_enforcement")
	if !ok {
		return
	}
	var req enforcementRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "update_mfa_enforcement", err.Error())
		return
	}
	if req.Enforced == nil {
		h.writeValidationError(r.Context(), w, "update_mfa_enforcement", "Missing required field: enforced")
		return
	}

	settings, err := h.engine.UpdateMfaEnforcement(r.Context(), userID, *req.Enforced)
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_mfa_enforcement", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"mfaEnforcement": settings})
}

// stepUpCheck reads currentAcr from the query, defaulting to 1 like any
// other unparseable value.
func (h *Handler) stepUpCheck(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.subjectFor(w, r, "step_up_check")
	if !ok {
		return
	}
	current := mfa.ParseACR(r.URL.Query().Get("currentAcr"))
	res, err := h.engine.CheckStepUpRequired(r.Context(), userID, current)
	if err != nil {
		h.writeMappedError(r.Context(), w, "step_up_check", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
