// Package mfa decides whether a user's MFA enforcement can be enabled, what
// ACR their configured methods can reach, and whether a session needs to step
// up before a sensitive operation.
//
// Only TOTP, passkeys and SMS codes qualify. Email codes and OAuth logins
// never satisfy enforcement.
package mfa
