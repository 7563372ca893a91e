// Package authmethod models the authentication factors a user has configured.
//
// Every factor is a [Method] whose kind-specific payload is a closed tagged
// union ([Totp], [SmsOtp], [EmailOtp], [Passkey], [OAuth]). The [Store]
// interface is the boundary to persistence; its UpdateIf operation is the
// compare-and-swap used for the OTP daily counter and sign-count updates.
//
// # What this package must NOT do
//
//   - Perform I/O itself (stores live in storage/...).
//   - Store a "primary" flag. Primary is derived by [Primary].
package authmethod
