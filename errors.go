package goTrust

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goTrust/autherr"
)

// Re-exported so callers of the root package can errors.Is without
// importing autherr.
var (
	ErrExpired            = autherr.ErrExpired
	ErrInvalidToken       = autherr.ErrInvalidToken
	ErrMalformed          = autherr.ErrMalformed
	ErrInvalidPurpose     = autherr.ErrInvalidPurpose
	ErrInvalidCredential  = autherr.ErrInvalidCredential
	ErrChallengeInvalid   = autherr.ErrChallengeInvalid
	ErrRateLimited        = autherr.ErrRateLimited
	ErrNotFound           = autherr.ErrNotFound
	ErrCredentialNotFound = autherr.ErrCredentialNotFound
	ErrServiceUnavailable = autherr.ErrServiceUnavailable
	ErrProviderFailure    = autherr.ErrProviderFailure
	ErrValidationFailed   = autherr.ErrValidationFailed
)

var (
	// ErrSessionNotFound is returned for an unknown, expired or revoked session.
	ErrSessionNotFound = fmt.Errorf("%w: session", autherr.ErrNotFound)
	// ErrEngineNotReady is returned by an Engine that was not produced by Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
