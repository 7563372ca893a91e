package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/otp"
)

// CodeStore is an in-memory [otp.CodeStore].
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]otp.CodeRecord
}

func NewCodeStore() *CodeStore {
	return &CodeStore{codes: make(map[string]otp.CodeRecord)}
}

func (s *CodeStore) SaveCode(_ context.Context, rec otp.CodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Attempts = 0
	s.codes[rec.MethodID] = rec
	return nil
}

func (s *CodeStore) ConsumeCode(_ context.Context, methodID string, digest [32]byte, now time.Time) (otp.CodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.codes[methodID]
	if !ok {
		return otp.CodeRecord{}, autherr.ErrInvalidCredential
	}
	if !now.Before(rec.ExpiresAt) {
		delete(s.codes, methodID)
		return otp.CodeRecord{}, fmt.Errorf("%w: code", autherr.ErrExpired)
	}
	if subtle.ConstantTimeCompare(rec.Digest[:], digest[:]) == 1 {
		delete(s.codes, methodID)
		return rec, nil
	}
	rec.Attempts++
	if rec.MaxAttempts > 0 && rec.Attempts >= rec.MaxAttempts {
		delete(s.codes, methodID)
		return otp.CodeRecord{}, &autherr.RateLimitError{Reason: "too many incorrect codes"}
	}
	s.codes[methodID] = rec
	return otp.CodeRecord{}, autherr.ErrInvalidCredential
}

func (s *CodeStore) DeleteCode(_ context.Context, methodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, methodID)
	return nil
}

var _ otp.CodeStore = (*CodeStore)(nil)
