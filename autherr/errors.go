// Package autherr defines the error taxonomy shared by every goTrust component.
//
// Components return the sentinels below (or wrap them with %w). Callers classify
// any returned error with [KindOf] and never need to compare strings.
package autherr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExpired marks a token, challenge or one-time code that is past its TTL.
	ErrExpired = errors.New("expired")
	// ErrInvalidToken marks a token that failed decryption or claim checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMalformed marks a token that could not be decoded at all.
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	// ErrInvalidPurpose marks a token minted for a different purpose.
	ErrInvalidPurpose = fmt.Errorf("%w: purpose mismatch", ErrInvalidToken)
	// ErrInvalidCredential marks a failed factor: wrong code, bad signature, unknown challenge.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrChallengeInvalid marks a challenge that was never issued for the flow or was already consumed.
	ErrChallengeInvalid = fmt.Errorf("%w: challenge", ErrInvalidCredential)
	// ErrRateLimited marks a request rejected by a counter or daily cap.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound marks an absent record.
	ErrNotFound = errors.New("not found")
	// ErrCredentialNotFound marks an unknown passkey credential id.
	ErrCredentialNotFound = fmt.Errorf("%w: credential", ErrNotFound)
	// ErrServiceUnavailable marks a dependency that cannot serve: missing key, backend down.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrProviderFailure marks an outbound SMS/email delivery failure or timeout.
	ErrProviderFailure = errors.New("provider failure")
	// ErrValidationFailed marks a business-rule rejection of otherwise well-formed input.
	ErrValidationFailed = errors.New("validation failed")
)

// Kind is the coarse classification of an error.
type Kind int

const (
	KindInternal Kind = iota
	KindExpired
	KindInvalidToken
	KindInvalidCredential
	KindRateLimited
	KindNotFound
	KindServiceUnavailable
	KindProviderFailure
	KindValidationFailed
)

var kindNames = [...]string{
	KindInternal:           "internal",
	KindExpired:            "expired",
	KindInvalidToken:       "invalid_token",
	KindInvalidCredential:  "invalid_credential",
	KindRateLimited:        "rate_limited",
	KindNotFound:           "not_found",
	KindServiceUnavailable: "service_unavailable",
	KindProviderFailure:    "provider_failure",
	KindValidationFailed:   "validation_failed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsAuthFailure reports whether the kind must be shown to end users as a
// generic "invalid credential".
func (k Kind) IsAuthFailure() bool {
	switch k {
	case KindInvalidToken, KindInvalidCredential, KindNotFound:
		return true
	default:
		return false
	}
}

// KindOf classifies err. A nil error is KindInternal; callers check nil first.
// Expiry is tested before the token family so an expired token is never
// reported as merely invalid.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrServiceUnavailable):
		return KindServiceUnavailable
	case errors.Is(err, ErrProviderFailure):
		return KindProviderFailure
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrInvalidToken):
		return KindInvalidToken
	case errors.Is(err, ErrInvalidCredential):
		return KindInvalidCredential
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidationFailed):
		return KindValidationFailed
	default:
		return KindInternal
	}
}

// RateLimitError carries the wait hint for a rate-limited request.
type RateLimitError struct {
	RetryAfter time.Duration
	Reason     string
}

func (e *RateLimitError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s: retry after %s", ErrRateLimited, e.Reason, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfter extracts the wait hint from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// Validation wraps a human-readable reason as ErrValidationFailed.
func Validation(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, reason)
}

// Unavailable wraps a backend error as ErrServiceUnavailable.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}
