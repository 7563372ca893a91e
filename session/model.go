package session

import (
	"context"
	"time"
)

// Session is one issued login. IPAddress is what the client presented at
// issuance; it is informational and never used for authorization.
type Session struct {
	SessionID      string
	UserID         string
	Email          string
	DeviceID       string
	IPAddress      string
	ACR            uint8
	IssuedAt       time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
}

// Expired reports whether s is past ExpiresAt at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Backend persists sessions. Redis and Postgres implementations exist; both
// return an error wrapping autherr.ErrNotFound for missing or expired
// sessions and one wrapping autherr.ErrServiceUnavailable when the store
// cannot be reached.
//
// Delete is idempotent. DeleteAllForUser returns how many live sessions it
// removed.
type Backend interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (Session, error)
	Touch(ctx context.Context, sessionID string, at time.Time) (Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	ListForUser(ctx context.Context, userID string) ([]Session, error)
}
