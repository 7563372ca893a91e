package mfa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
)

// Preferences is the stored per-user enforcement choice.
type Preferences struct {
	Enforced   bool
	MinimumACR int
	UpdatedAt  time.Time
}

// PreferenceStore persists Preferences. GetPreferences returns zero
// Preferences and a nil error for a user who never saved any.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (Preferences, error)
	SavePreferences(ctx context.Context, userID string, p Preferences) error
}

// MethodLister is the read side of authmethod.Store used by the policy.
type MethodLister interface {
	ListByUser(ctx context.Context, userID string) ([]authmethod.Method, error)
}

// Settings is the computed enforcement view for one user.
type Settings struct {
	Enforced          bool         `json:"enforced"`
	MinimumACR        int          `json:"minimumAcrLevel"`
	CurrentACR        int          `json:"currentAcrLevel"`
	CanEnable         bool         `json:"canEnable"`
	ConfiguredMethods []MethodInfo `json:"configuredMethods"`
	StrengthLabel     string       `json:"strengthLabel"`
	UpgradeHint       string       `json:"upgradeHint,omitempty"`
}

// StepUp is the outcome of a step-up check.
type StepUp struct {
	Required         bool         `json:"required"`
	MinimumACR       int          `json:"minimumAcrLevel,omitempty"`
	CurrentACR       int          `json:"currentAcrLevel"`
	AvailableMethods []MethodInfo `json:"availableMethods,omitempty"`
}

// RemovalCheck tells the caller what removing a method would do.
type RemovalCheck struct {
	SafeToRemove        bool `json:"safeToRemove"`
	DisablesEnforcement bool `json:"disablesEnforcement"`
	RemainingQualifying int  `json:"remainingQualifying"`
}

// Engine applies the enforcement policy.
//
// Invariant: Enforced is never true for a user with zero qualifying methods.
// UpdateMfaEnforcement refuses to enable it and OnMethodRemoved turns it off
// when the last qualifying method goes away.
type Engine struct {
	prefs      PreferenceStore
	methods    MethodLister
	defaultMin int
	now        func() time.Time
}

// NewEngine wires the policy. defaultMinimumACR of 0 means DefaultMinimumACR.
func NewEngine(prefs PreferenceStore, methods MethodLister, defaultMinimumACR int, now func() time.Time) (*Engine, error) {
	if prefs == nil || methods == nil {
		return nil, errors.New("mfa: preference store and method lister are required")
	}
	if defaultMinimumACR == 0 {
		defaultMinimumACR = DefaultMinimumACR
	}
	if !validMinimum(defaultMinimumACR) {
		return nil, fmt.Errorf("mfa: default minimum ACR must be 2 or 3, got %d", defaultMinimumACR)
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{prefs: prefs, methods: methods, defaultMin: defaultMinimumACR, now: now}, nil
}

// GetEnforcementSettings computes the enforcement view for userID.
func (e *Engine) GetEnforcementSettings(ctx context.Context, userID string) (Settings, error) {
	p, err := e.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	q, err := e.qualifyingMethods(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	acr := MaxAchievableACR(q)
	infos := methodInfos(q)
	return Settings{
		Enforced:          p.Enforced,
		MinimumACR:        e.minimum(p),
		CurrentACR:        acr,
		CanEnable:         len(q) > 0,
		ConfiguredMethods: infos,
		StrengthLabel:     StrengthLabel(acr),
		UpgradeHint:       UpgradeHint(q, acr),
	}, nil
}

// UpdateMfaEnforcement turns enforcement on or off. Enabling requires at
// least one qualifying method; disabling is always allowed.
//
// Enabling checks the methods again after saving. If the last qualifying
// method was removed in between, enforcement is switched back off and the
// call fails as if no method had been configured.
func (e *Engine) UpdateMfaEnforcement(ctx context.Context, userID string, enforced bool) (Settings, error) {
	if enforced {
		if err := e.requireQualifying(ctx, userID); err != nil {
			return Settings{}, err
		}
	}
	p, err := e.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	p.Enforced = enforced
	p.UpdatedAt = e.now()
	if err := e.prefs.SavePreferences(ctx, userID, p); err != nil {
		return Settings{}, err
	}
	if enforced {
		if err := e.requireQualifying(ctx, userID); err != nil {
			if autherr.KindOf(err) != autherr.KindValidationFailed {
				return Settings{}, err
			}
			p.Enforced = false
			p.UpdatedAt = e.now()
			if serr := e.prefs.SavePreferences(ctx, userID, p); serr != nil {
				return Settings{}, serr
			}
			return Settings{}, err
		}
	}
	return e.GetEnforcementSettings(ctx, userID)
}

func (e *Engine) requireQualifying(ctx context.Context, userID string) error {
	q, err := e.qualifyingMethods(ctx, userID)
	if err != nil {
		return err
	}
	if len(q) == 0 {
		return autherr.Validation("No MFA methods configured. Set up at least one MFA method first.")
	}
	return nil
}

// UpdateMinimumACR sets the step-up floor. Only 2 and 3 are accepted.
func (e *Engine) UpdateMinimumACR(ctx context.Context, userID string, acr int) (Settings, error) {
	if !validMinimum(acr) {
		return Settings{}, autherr.Validation(fmt.Sprintf("minimum ACR must be 2 or 3, got %d", acr))
	}
	p, err := e.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	p.MinimumACR = acr
	p.UpdatedAt = e.now()
	if err := e.prefs.SavePreferences(ctx, userID, p); err != nil {
		return Settings{}, err
	}
	return e.GetEnforcementSettings(ctx, userID)
}

// CheckMethodRemoval reports whether deleting methodID would leave an
// enforcing user without a qualifying method.
func (e *Engine) CheckMethodRemoval(ctx context.Context, userID, methodID string) (RemovalCheck, error) {
	q, err := e.qualifyingMethods(ctx, userID)
	if err != nil {
		return RemovalCheck{}, err
	}
	remaining := 0
	for _, m := range q {
		if m.ID != methodID {
			remaining++
		}
	}
	p, err := e.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return RemovalCheck{}, err
	}
	disables := p.Enforced && remaining == 0
	return RemovalCheck{
		SafeToRemove:        !disables,
		DisablesEnforcement: disables,
		RemainingQualifying: remaining,
	}, nil
}

// OnMethodRemoved restores the invariant after a method was deleted. It
// reports whether enforcement was switched off.
func (e *Engine) OnMethodRemoved(ctx context.Context, userID string) (bool, error) {
	q, err := e.qualifyingMethods(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(q) > 0 {
		return false, nil
	}
	p, err := e.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return false, err
	}
	if !p.Enforced {
		return false, nil
	}
	p.Enforced = false
	p.UpdatedAt = e.now()
	if err := e.prefs.SavePreferences(ctx, userID, p); err != nil {
		return false, err
	}
	return true, nil
}

// CheckStepUpRequired decides whether a session at currentACR must step up.
func (e *Engine) CheckStepUpRequired(ctx context.Context, userID string, currentACR int) (StepUp, error) {
	p, err := e.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return StepUp{}, err
	}
	if !p.Enforced {
		return StepUp{CurrentACR: currentACR}, nil
	}
	minimum := e.minimum(p)
	if currentACR >= minimum {
		return StepUp{CurrentACR: currentACR, MinimumACR: minimum}, nil
	}
	q, err := e.qualifyingMethods(ctx, userID)
	if err != nil {
		return StepUp{}, err
	}
	return StepUp{
		Required:         true,
		MinimumACR:       minimum,
		CurrentACR:       currentACR,
		AvailableMethods: methodInfos(q),
	}, nil
}

// AvailableMethods lists the qualifying methods of userID.
func (e *Engine) AvailableMethods(ctx context.Context, userID string) ([]MethodInfo, error) {
	q, err := e.qualifyingMethods(ctx, userID)
	if err != nil {
		return nil, err
	}
	return methodInfos(q), nil
}

func (e *Engine) qualifyingMethods(ctx context.Context, userID string) ([]authmethod.Method, error) {
	all, err := e.methods.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return qualifying(all), nil
}

func (e *Engine) minimum(p Preferences) int {
	if validMinimum(p.MinimumACR) {
		return p.MinimumACR
	}
	return e.defaultMin
}

func validMinimum(acr int) bool { return acr == 2 || acr == 3 }

// ParseACR reads an acr claim value. Anything unparseable counts as
// single-factor.
func ParseACR(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 1
	}
	return n
}
