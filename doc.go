// Package goTrust is the authentication trust core of a financial platform:
// v4.local session tokens, passkeys, SMS/email one-time codes, authenticator
// apps, device trust scoring and MFA step-up enforcement behind one Engine.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goTrust is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (IssuedSession, SessionInfo, SecurityOverview, etc.). Each
// factor lives in its own package (token, otp, passkey, device, mfa) and can
// be used standalone. Redis-backed limiters, challenge and code stores, the
// settings cache and audit dispatch live under internal/.
//
// # Storage
//
// Sessions, passkey challenges and OTP codes default to Redis. Methods,
// devices and MFA preferences are persisted through the storage/postgres
// repositories or any implementation of the store interfaces; storage/memory
// is provided for tests and single-process deployments.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores or token keys in its public API.
//   - Accept a token key from configuration files. Keys come from a
//     [token.KeySource].
//   - Import any sub-package that re-imports goTrust (no import cycles).
//
// # Failure reporting
//
// Every error returned by the Engine maps onto one [autherr.Kind]. Token,
// credential and lookup failures are collapsed to a generic message at the
// HTTP boundary; rate limits carry a retry-after hint; a missing token key
// or unreachable backend is reported as service unavailable, never as an
// authentication failure.
package goTrust
