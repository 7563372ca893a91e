package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
)

// MethodStore is an in-memory [authmethod.Store].
type MethodStore struct {
	mu      sync.Mutex
	methods map[string]authmethod.Method
}

func NewMethodStore() *MethodStore {
	return &MethodStore{methods: make(map[string]authmethod.Method)}
}

func (s *MethodStore) Create(_ context.Context, m authmethod.Method) error {
	if err := m.Validate(); err != nil {
		return autherr.Validation(err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.methods[m.ID]; ok {
		return autherr.Validation("method " + m.ID + " already exists")
	}
	s.methods[m.ID] = m
	return nil
}

func (s *MethodStore) Get(_ context.Context, id string) (authmethod.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.methods[id]
	if !ok {
		return authmethod.Method{}, fmt.Errorf("method %s: %w", id, autherr.ErrNotFound)
	}
	return m, nil
}

// ListByUser returns the user's methods oldest first.
func (s *MethodStore) ListByUser(_ context.Context, userID string) ([]authmethod.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]authmethod.Method, 0)
	for _, m := range s.methods {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MethodStore) FindByCredentialID(_ context.Context, credentialID string) (authmethod.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.methods {
		if pk, ok := m.Metadata.(authmethod.Passkey); ok && pk.CredentialID == credentialID {
			return m, nil
		}
	}
	return authmethod.Method{}, fmt.Errorf("credential %s: %w", credentialID, autherr.ErrNotFound)
}

func (s *MethodStore) FindByTarget(_ context.Context, kind authmethod.Kind, target string) (authmethod.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.methods {
		if m.Kind != kind {
			continue
		}
		if t, ok := m.Target(); ok && t == target {
			return m, nil
		}
	}
	return authmethod.Method{}, fmt.Errorf("%s target: %w", kind, autherr.ErrNotFound)
}

// UpdateIf runs predicate and mutation while holding the store lock.
func (s *MethodStore) UpdateIf(_ context.Context, id string, predicate authmethod.Predicate, mutation authmethod.Mutation) (authmethod.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.methods[id]
	if !ok {
		return authmethod.Method{}, fmt.Errorf("method %s: %w", id, autherr.ErrNotFound)
	}
	if predicate != nil {
		if err := predicate(cur); err != nil {
			return authmethod.Method{}, err
		}
	}
	next := mutation(cur)
	next.ID, next.UserID = cur.ID, cur.UserID
	if err := next.Validate(); err != nil {
		return authmethod.Method{}, autherr.Validation(err.Error())
	}
	s.methods[id] = next
	return next, nil
}

// Delete is idempotent.
func (s *MethodStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.methods, id)
	return nil
}

var _ authmethod.Store = (*MethodStore)(nil)
