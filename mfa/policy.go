package mfa

import (
	"github.com/MrEthical07/goTrust/authmethod"
)

const (
	// DefaultMinimumACR is the step-up floor for users who never chose one.
	DefaultMinimumACR = 2

	strengthStrong   = "Strong"
	strengthStandard = "Standard"
)

// MethodInfo is the public view of a qualifying method.
type MethodInfo struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Strength string `json:"strength"`
}

// Qualifying reports whether m counts towards enforcement. Passkeys count as
// soon as they are stored since registration already verified them.
func Qualifying(m authmethod.Method) bool {
	return m.Kind.StepUpCapable() && m.Usable()
}

// qualifying filters methods down to those that count towards enforcement.
func qualifying(methods []authmethod.Method) []authmethod.Method {
	out := make([]authmethod.Method, 0, len(methods))
	for _, m := range methods {
		if Qualifying(m) {
			out = append(out, m)
		}
	}
	return out
}

// MaxAchievableACR is the highest ACR the given qualifying methods can reach.
func MaxAchievableACR(methods []authmethod.Method) int {
	if len(methods) == 0 {
		return 1
	}
	hasPasskey, hasOther := false, false
	for _, m := range methods {
		if m.Kind == authmethod.KindPasskey {
			hasPasskey = true
		} else {
			hasOther = true
		}
	}
	if hasPasskey && hasOther {
		return 3
	}
	return 2
}

// StrengthLabel names an ACR level for display.
func StrengthLabel(acr int) string {
	switch {
	case acr >= 3:
		return "Maximum"
	case acr == 2:
		return "Strong"
	case acr == 1:
		return "Basic"
	default:
		return "None"
	}
}

// UpgradeHint suggests the next method to add, or "" when nothing improves acr.
func UpgradeHint(methods []authmethod.Method, acr int) string {
	if acr >= 3 {
		return ""
	}
	hasPasskey, hasTOTP := false, false
	for _, m := range methods {
		switch m.Kind {
		case authmethod.KindPasskey:
			hasPasskey = true
		case authmethod.KindTOTP:
			hasTOTP = true
		}
	}
	switch {
	case hasPasskey && !hasTOTP:
		return "Add an authenticator app alongside your passkey for maximum security (ACR 3)."
	case hasTOTP && !hasPasskey:
		return "Add a passkey alongside your authenticator app for maximum security (ACR 3)."
	case len(methods) == 0:
		return "Set up a passkey or authenticator app to enable MFA."
	default:
		return "Add a passkey for stronger authentication."
	}
}

func methodInfo(m authmethod.Method) MethodInfo {
	strength := strengthStandard
	if m.Kind == authmethod.KindPasskey {
		strength = strengthStrong
	}
	return MethodInfo{
		ID:       m.ID,
		Type:     m.Kind.Wire(),
		Name:     m.DisplayName(),
		Strength: strength,
	}
}

func methodInfos(methods []authmethod.Method) []MethodInfo {
	out := make([]MethodInfo, 0, len(methods))
	for _, m := range methods {
		out = append(out, methodInfo(m))
	}
	return out
}
