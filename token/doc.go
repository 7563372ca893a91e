// Package token issues and validates the encrypted tokens of the trust core:
// signup, access, refresh and device-trust tokens, all PASETO v4.local.
//
// Claims are JSON with numeric-date registered claims and are checked with
// the golang-jwt validator after decryption. A [Manager] without key
// material fails closed.
//
// There is no denylist. An access token stays valid until it expires; callers
// that must observe revocation check the session as well. Refresh tokens are
// not rotated on use.
//
// # What this package must NOT do
//
//   - Fall back to a built-in key.
//   - Perform I/O on the validation path.
package token
