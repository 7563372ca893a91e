// Package memory provides mutex-guarded in-process implementations of every
// store the trust core consumes.
//
// They are used by tests, by the load-test binary and by single-node
// deployments that accept losing state on restart. Each store takes an
// optional clock so expiry can be driven deterministically.
//
// # Atomicity
//
// Every read-modify-write (authmethod UpdateIf, challenge consumption, code
// consumption) runs under the store's mutex, so concurrent callers observe the
// same single-winner semantics as the Redis and Postgres backends.
package memory
