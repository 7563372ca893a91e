// Package session provides session persistence behind the [Backend]
// interface, a Redis implementation ([RedisStore]) and the compact binary
// encoding that implementation stores.
//
// # Architecture boundaries
//
// This package owns the [Session] model and its storage. It does NOT
// interpret tokens or evaluate MFA policy; the Engine in the root package
// does that and calls into a [Backend].
//
// # What this package must NOT do
//
//   - Import the root package, token or mfa (no upward imports).
//   - Store tokens or other secrets in [Session] fields.
package session
