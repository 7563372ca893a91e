package goTrust

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/mfa"
	"github.com/MrEthical07/goTrust/token"
)

// MethodSummary is the security-page view of one configured method.
type MethodSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	Verified   bool   `json:"verified"`
	CreatedAt  string `json:"createdAt"`
	LastUsedAt string `json:"lastUsedAt,omitempty"`
}

// SecurityOverview groups a user's methods by wire kind next to the MFA
// enforcement settings.
type SecurityOverview struct {
	UserID  string                     `json:"userId"`
	Methods map[string][]MethodSummary `json:"methods"`
	MFA     mfa.Settings               `json:"mfa"`
}

// SecurityOverview builds the aggregated security view of userID.
func (e *Engine) SecurityOverview(ctx context.Context, userID string) (SecurityOverview, error) {
	if userID == "" {
		return SecurityOverview{}, autherr.Validation("user id is required")
	}
	methods, err := e.methods.ListByUser(ctx, userID)
	if err != nil {
		return SecurityOverview{}, err
	}
	settings, err := e.GetEnforcementSettings(ctx, userID)
	if err != nil {
		return SecurityOverview{}, err
	}

	grouped := make(map[string][]MethodSummary)
	for _, m := range methods {
		s := MethodSummary{
			ID:        m.ID,
			Name:      m.DisplayName(),
			Active:    m.Active,
			Verified:  m.Verified,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		}
		if !m.LastUsedAt.IsZero() {
			s.LastUsedAt = m.LastUsedAt.UTC().Format(time.RFC3339)
		}
		grouped[m.Kind.Wire()] = append(grouped[m.Kind.Wire()], s)
	}
	return SecurityOverview{UserID: userID, Methods: grouped, MFA: settings}, nil
}

// GetEnforcementSettings returns the computed MFA settings of userID. Results
// are cached for Config.Cache.SettingsTTL; every write path invalidates.
func (e *Engine) GetEnforcementSettings(ctx context.Context, userID string) (mfa.Settings, error) {
	if userID == "" {
		return mfa.Settings{}, autherr.Validation("user id is required")
	}
	if s, ok := e.settingsCache.Get(userID); ok {
		return s, nil
	}
	s, err := e.policy.GetEnforcementSettings(ctx, userID)
	if err != nil {
		return mfa.Settings{}, err
	}
	e.settingsCache.Put(userID, s)
	return s, nil
}

// UpdateMfaEnforcement turns enforcement on or off for userID.
func (e *Engine) UpdateMfaEnforcement(ctx context.Context, userID string, enforced bool) (mfa.Settings, error) {
	if userID == "" {
		return mfa.Settings{}, autherr.Validation("user id is required")
	}
	s, err := e.policy.UpdateMfaEnforcement(ctx, userID, enforced)
	if err != nil {
		e.settingsCache.Invalidate(userID)
		e.emitAudit(ctx, auditEventMFAEnforcementChanged, false, userID, "", "", err, nil)
		return mfa.Settings{}, err
	}
	e.settingsCache.Put(userID, s)
	e.metricInc(MetricMFAEnforcementChanged)
	e.logger.InfoContext(ctx, "mfa enforcement updated",
		"operation", "update_mfa_enforcement",
		"outcome", "success",
		"user_id", userID,
		"enforced", enforced,
	)
	e.emitAudit(ctx, auditEventMFAEnforcementChanged, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"enforced": fmt.Sprint(enforced)}
	})
	return s, nil
}

// UpdateMinimumACR sets the step-up floor of userID to 2 or 3.
func (e *Engine) UpdateMinimumACR(ctx context.Context, userID string, acr int) (mfa.Settings, error) {
	if userID == "" {
		return mfa.Settings{}, autherr.Validation("user id is required")
	}
	s, err := e.policy.UpdateMinimumACR(ctx, userID, acr)
	if err != nil {
		return mfa.Settings{}, err
	}
	e.settingsCache.Put(userID, s)
	e.emitAudit(ctx, auditEventMFAMinimumACRChanged, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"minimum_acr": fmt.Sprint(acr)}
	})
	return s, nil
}

// CheckStepUpRequired decides whether a session at currentACR must step up
// before a sensitive operation.
func (e *Engine) CheckStepUpRequired(ctx context.Context, userID string, currentACR int) (mfa.StepUp, error) {
	if userID == "" {
		return mfa.StepUp{}, autherr.Validation("user id is required")
	}
	res, err := e.policy.CheckStepUpRequired(ctx, userID, currentACR)
	if err != nil {
		return mfa.StepUp{}, err
	}
	if res.Required {
		e.metricInc(MetricStepUpRequired)
		e.emitAudit(ctx, auditEventStepUpRequired, false, userID, "", "", nil, func() map[string]string {
			return map[string]string{
				"current_acr": fmt.Sprint(res.CurrentACR),
				"minimum_acr": fmt.Sprint(res.MinimumACR),
			}
		})
	}
	return res, nil
}

// CheckStepUpForToken runs CheckStepUpRequired with the subject and acr of
// an access token.
func (e *Engine) CheckStepUpForToken(ctx context.Context, accessToken string) (mfa.StepUp, *token.Claims, error) {
	claims, err := e.ValidateAccessToken(accessToken)
	if err != nil {
		return mfa.StepUp{}, nil, err
	}
	res, err := e.CheckStepUpRequired(ctx, claims.Subject, claims.ACRLevel())
	return res, claims, err
}

// CheckMethodRemoval reports what removing methodID would do to the
// enforcement state of userID.
func (e *Engine) CheckMethodRemoval(ctx context.Context, userID, methodID string) (mfa.RemovalCheck, error) {
	if userID == "" || methodID == "" {
		return mfa.RemovalCheck{}, autherr.Validation("user id and method id are required")
	}
	return e.policy.CheckMethodRemoval(ctx, userID, methodID)
}

// RemoveMethod deletes one of the user's methods. When it was the last
// qualifying method enforcement is switched off in the same call.
func (e *Engine) RemoveMethod(ctx context.Context, userID, methodID string) (mfa.Settings, error) {
	if userID == "" || methodID == "" {
		return mfa.Settings{}, autherr.Validation("user id and method id are required")
	}
	m, err := e.methods.Get(ctx, methodID)
	if err != nil {
		return mfa.Settings{}, err
	}
	if m.UserID != userID {
		return mfa.Settings{}, fmt.Errorf("method %s: %w", methodID, autherr.ErrNotFound)
	}
	if err := e.methods.Delete(ctx, methodID); err != nil {
		return mfa.Settings{}, err
	}
	e.metricInc(MetricMethodRemoved)
	e.emitAudit(ctx, auditEventMethodRemoved, true, userID, "", token.MethodName(m.Kind), nil, nil)

	disabled, err := e.policy.OnMethodRemoved(ctx, userID)
	e.methodsChanged(userID)
	if err != nil {
		e.logger.ErrorContext(ctx, "mfa invariant repair failed",
			"operation", "remove_method",
			"outcome", "failure",
			"user_id", userID,
			"error", err,
		)
		return mfa.Settings{}, err
	}
	if disabled {
		e.logger.InfoContext(ctx, "mfa enforcement disabled after last method removed",
			"operation", "remove_method",
			"user_id", userID,
		)
		e.emitAudit(ctx, auditEventMFAAutoDisabled, true, userID, "", "", nil, nil)
	}
	return e.GetEnforcementSettings(ctx, userID)
}

// ListMethods returns every method of userID.
func (e *Engine) ListMethods(ctx context.Context, userID string) ([]authmethod.Method, error) {
	if userID == "" {
		return nil, autherr.Validation("user id is required")
	}
	return e.methods.ListByUser(ctx, userID)
}

func (e *Engine) methodsChanged(userID string) {
	e.settingsCache.Invalidate(userID)
}
