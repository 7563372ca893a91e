// Package stores provides Redis-backed, short-lived record stores for the
// trust core: passkey challenges and pending OTP digests.
//
// # Design
//
// Each store persists a versioned, binary-encoded record with a TTL.
// Consumption uses WATCH/MULTI optimistic transactions with retry on
// contention, so a record is handed out at most once. Digest comparison is
// constant time.
//
// # What this package must NOT do
//
//   - Generate codes or challenges (otp and passkey do that).
//   - Log or expose plaintext secrets.
package stores
