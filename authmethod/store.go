package authmethod

import (
	"context"
	"errors"
)

// ErrConditionFailed is returned by UpdateIf when the predicate rejected the
// current record. The record is left unchanged.
var ErrConditionFailed = errors.New("authmethod: condition not met")

// Predicate inspects the current record inside UpdateIf. Returning an error
// aborts the update and that error is returned to the caller as-is.
type Predicate func(current Method) error

// Mutation produces the new record from the current one.
type Mutation func(current Method) Method

// Store is the keyed persistent store for authentication methods.
//
// UpdateIf is the only read-modify-write primitive. Implementations must run
// predicate and mutation against a record that no concurrent UpdateIf can
// change in between (row lock, transaction, or mutex).
type Store interface {
	Create(ctx context.Context, m Method) error
	Get(ctx context.Context, id string) (Method, error)
	ListByUser(ctx context.Context, userID string) ([]Method, error)
	FindByCredentialID(ctx context.Context, credentialID string) (Method, error)
	FindByTarget(ctx context.Context, kind Kind, target string) (Method, error)
	UpdateIf(ctx context.Context, id string, predicate Predicate, mutation Mutation) (Method, error)
	Delete(ctx context.Context, id string) error
}
