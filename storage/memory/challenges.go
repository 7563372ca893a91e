package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/passkey"
)

// ChallengeStore is an in-memory [passkey.ChallengeStore].
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]passkey.Challenge
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{challenges: make(map[string]passkey.Challenge)}
}

func (s *ChallengeStore) Put(_ context.Context, c passkey.Challenge) error {
	if c.Value == "" {
		return autherr.Validation("challenge value is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.Value] = c
	return nil
}

// Consume removes and returns the challenge under the store lock.
func (s *ChallengeStore) Consume(_ context.Context, value string, typ passkey.ChallengeType, now time.Time) (passkey.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[value]
	if !ok {
		return passkey.Challenge{}, autherr.ErrChallengeInvalid
	}
	if c.Type != typ {
		return passkey.Challenge{}, fmt.Errorf("%w: issued for %s", autherr.ErrChallengeInvalid, c.Type)
	}
	delete(s.challenges, value)
	if !now.Before(c.ExpiresAt) {
		return passkey.Challenge{}, fmt.Errorf("%w: challenge", autherr.ErrExpired)
	}
	return c, nil
}

// Len reports how many challenges are pending.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

var _ passkey.ChallengeStore = (*ChallengeStore)(nil)
