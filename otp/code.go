package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"
)

// CodeRecord is a pending out-of-band code. Only the digest is stored.
type CodeRecord struct {
	MethodID    string
	Digest      [32]byte
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
}

// CodeStore holds pending codes. ConsumeCode must be atomic: the digest
// comparison, attempt increment and deletion happen as one guarded step.
//
// ConsumeCode returns ErrExpired for a record past ExpiresAt,
// ErrInvalidCredential for a mismatch or a missing record, and ErrRateLimited
// once MaxAttempts mismatches were recorded (the record is then deleted).
type CodeStore interface {
	SaveCode(ctx context.Context, rec CodeRecord) error
	ConsumeCode(ctx context.Context, methodID string, digest [32]byte, now time.Time) (CodeRecord, error)
	DeleteCode(ctx context.Context, methodID string) error
}

// GenerateCode returns a uniformly random numeric code of the given length.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 || digits > 10 {
		return "", fmt.Errorf("invalid otp length %d", digits)
	}
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// Digest binds a code to its method so a digest leaked for one method is
// useless for another.
func Digest(methodID, code string) [32]byte {
	return sha256.Sum256([]byte(methodID + ":" + code))
}
