// Package middleware exposes HTTP guards built on goTrust.Engine.
//
// # Guards
//
//   - [Guard]: stateless access token check, no backend call.
//   - [RequireSession]: access token plus a live session in the backend.
//   - [RequireStepUp]: access token plus the user's MFA step-up floor.
//
// Each guard reads the bearer token (or the access cookie), delegates the
// decision to the Engine and stores the validated claims in the request
// context for [ClaimsFromContext].
//
// # What this package must NOT do
//
//   - Open or mint tokens directly (delegates to Engine).
//   - Access Redis or the stores (Engine handles I/O).
//   - Tell a caller why a token was refused beyond 401 versus 503.
package middleware
