package token

import (
	"slices"

	"github.com/MrEthical07/goTrust/authmethod"
)

// Method names carried in tokens. They are encoded as small integers in the
// amr claim so the claim does not spell out which factors a user has.
//
// The numbering is shared with every service that reads these tokens and
// must never change. Password, backup codes, Facebook and Apple are never
// produced here; they keep their codes reserved so tokens from other issuers
// still decode.
const (
	MethodPassword    = "password"
	MethodSMSOTP      = "sms_otp"
	MethodPasskey     = "passkeys"
	MethodTOTP        = "totp"
	MethodEmailOTP    = "email_otp"
	MethodBackupCodes = "backup_codes"
	MethodGoogle      = "google"
	MethodFacebook    = "facebook"
	MethodApple       = "apple"
	MethodMicrosoft   = "microsoft"
	MethodGitHub      = "github"
)

var amrCodes = map[string]int{
	MethodPassword:    1,
	MethodSMSOTP:      2,
	MethodPasskey:     3,
	MethodTOTP:        4,
	MethodEmailOTP:    5,
	MethodBackupCodes: 6,
	MethodGoogle:      7,
	MethodFacebook:    8,
	MethodApple:       9,
	MethodMicrosoft:   10,
	MethodGitHub:      11,
}

var amrNames = func() map[int]string {
	out := make(map[int]string, len(amrCodes))
	for name, code := range amrCodes {
		out[code] = name
	}
	return out
}()

// MethodName maps a stored method kind to its token method name.
func MethodName(k authmethod.Kind) string {
	switch k {
	case authmethod.KindPasskey:
		return MethodPasskey
	case authmethod.KindTOTP:
		return MethodTOTP
	case authmethod.KindSMSOTP:
		return MethodSMSOTP
	case authmethod.KindEmailOTP:
		return MethodEmailOTP
	case authmethod.KindOAuthGoogle:
		return MethodGoogle
	case authmethod.KindOAuthGitHub:
		return MethodGitHub
	case authmethod.KindOAuthMicrosoft:
		return MethodMicrosoft
	default:
		return ""
	}
}

// EncodeAMR turns method names into amr codes. Unknown names and duplicates
// are dropped.
func EncodeAMR(methods []string) []int {
	out := make([]int, 0, len(methods))
	for _, m := range methods {
		code, ok := amrCodes[m]
		if ok && !slices.Contains(out, code) {
			out = append(out, code)
		}
	}
	return out
}

// DecodeAMR turns amr codes back into method names. Unknown codes are dropped.
func DecodeAMR(amr []int) []string {
	out := make([]string, 0, len(amr))
	for _, code := range amr {
		if name, ok := amrNames[code]; ok {
			out = append(out, name)
		}
	}
	return out
}

// CalculateACR grades a set of completed methods:
// 0 for partial or no authentication, 3 for a passkey plus another method,
// 2 for a passkey alone or any two methods, 1 otherwise.
func CalculateACR(methods []string, partial bool) int {
	distinct := EncodeAMR(methods)
	if partial || len(distinct) == 0 {
		return 0
	}
	hasPasskey := slices.Contains(distinct, amrCodes[MethodPasskey])
	switch {
	case hasPasskey && len(distinct) > 1:
		return 3
	case hasPasskey || len(distinct) >= 2:
		return 2
	default:
		return 1
	}
}
