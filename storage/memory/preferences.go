package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/goTrust/mfa"
)

// PreferenceStore is an in-memory [mfa.PreferenceStore].
type PreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]mfa.Preferences
}

func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{prefs: make(map[string]mfa.Preferences)}
}

func (s *PreferenceStore) GetPreferences(_ context.Context, userID string) (mfa.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[userID], nil
}

func (s *PreferenceStore) SavePreferences(_ context.Context, userID string, p mfa.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = p
	return nil
}

var _ mfa.PreferenceStore = (*PreferenceStore)(nil)
