// Package otp issues and verifies SMS and email one-time codes and checks
// authenticator-app (TOTP) codes.
//
// Codes are stored only as SHA-256 digests, one pending code per method, and
// are removed on first successful use. Delivery goes through a [Channel]; a
// failed send is reported as a provider failure and leaves no code behind.
package otp
