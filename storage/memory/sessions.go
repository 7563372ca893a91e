package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/session"
)

// SessionStore is an in-memory [session.Backend].
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	now      func() time.Time
}

// NewSessionStore creates a session store. now may be nil.
func NewSessionStore(now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{sessions: make(map[string]session.Session), now: now}
}

func (s *SessionStore) Save(_ context.Context, sess session.Session) error {
	if sess.SessionID == "" || sess.UserID == "" {
		return autherr.Validation("session id and user id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(sessionID)
}

func (s *SessionStore) Touch(_ context.Context, sessionID string, at time.Time) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.live(sessionID)
	if err != nil {
		return session.Session{}, err
	}
	sess.LastAccessedAt = at
	s.sessions[sessionID] = sess
	return sess, nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *SessionStore) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if !sess.Expired(now) {
			n++
		}
		delete(s.sessions, id)
	}
	return n, nil
}

// ListForUser returns live sessions, most recently issued first.
func (s *SessionStore) ListForUser(_ context.Context, userID string) ([]session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]session.Session, 0)
	for id, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if sess.Expired(now) {
			delete(s.sessions, id)
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

// live must be called with s.mu held. Expired sessions are evicted on read.
func (s *SessionStore) live(sessionID string) (session.Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return session.Session{}, fmt.Errorf("session %s: %w", sessionID, autherr.ErrNotFound)
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, sessionID)
		return session.Session{}, fmt.Errorf("session %s: %w", sessionID, autherr.ErrNotFound)
	}
	return sess, nil
}

var _ session.Backend = (*SessionStore)(nil)
