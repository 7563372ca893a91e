package passkey

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
)

// ChallengeType tags a challenge with the ceremony it was issued for.
type ChallengeType uint8

const (
	ChallengeRegistration   ChallengeType = 1
	ChallengeAuthentication ChallengeType = 2
)

func (t ChallengeType) String() string {
	switch t {
	case ChallengeRegistration:
		return "REGISTRATION"
	case ChallengeAuthentication:
		return "AUTHENTICATION"
	default:
		return "UNKNOWN"
	}
}

// Challenge is a single-use nonce. Value is base64url without padding.
type Challenge struct {
	Value     string
	Type      ChallengeType
	UserID    string
	UserName  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ChallengeStore keeps issued challenges until they are consumed or expire.
//
// Consume is the single guarded check-and-invalidate step: it returns the
// challenge and removes it in one operation, so among concurrent callers at
// most one receives it. A missing challenge or one of another type yields
// autherr.ErrChallengeInvalid (a type mismatch leaves the record in place); an
// expired one is removed and yields autherr.ErrExpired.
type ChallengeStore interface {
	Put(ctx context.Context, c Challenge) error
	Consume(ctx context.Context, value string, typ ChallengeType, now time.Time) (Challenge, error)
}

// State is the outcome of one ceremony attempt.
type State string

const (
	StateIssued   State = "ISSUED"
	StateVerified State = "VERIFIED"
	StateFailed   State = "FAILED"
	StateExpired  State = "EXPIRED"
)

// StateOf maps a completion error to the terminal state of the attempt.
func StateOf(err error) State {
	switch {
	case err == nil:
		return StateVerified
	case errors.Is(err, autherr.ErrExpired):
		return StateExpired
	default:
		return StateFailed
	}
}
