// Package passkey runs WebAuthn registration and authentication ceremonies
// against single-use challenges.
//
// Challenges are 32 random bytes, tagged REGISTRATION or AUTHENTICATION,
// and are consumed through [ChallengeStore.Consume] before any signature is
// checked. Attestation and authenticator data are decoded with the go-fdo
// CBOR and COSE packages; only EC2 credential keys are accepted. The
// attestation statement itself is not verified: accepted formats are listed
// in [Config.AttestationFormats].
package passkey
