// Package passkeytest provides a software authenticator that produces real
// attestation and assertion responses for tests.
package passkeytest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/MrEthical07/goTrust/passkey"
	"github.com/fido-device-onboard/go-fdo/cbor"
	"github.com/fido-device-onboard/go-fdo/cose"
)

const (
	flagUP = 0x01
	flagUV = 0x04
	flagBE = 0x08
	flagBS = 0x10
	flagAT = 0x40
)

// Authenticator holds one P-256 credential.
type Authenticator struct {
	RPID   string
	Origin string

	// SignCount is the counter reported by the next assertion before it is
	// incremented. Leave it zero and set Counterless for authenticators
	// that never count.
	SignCount   uint32
	Counterless bool

	UserVerified bool
	Synced       bool

	// Format is the attestation statement format, "none" by default.
	Format string

	AAGUID [16]byte

	key    *ecdsa.PrivateKey
	credID []byte
}

// New creates an authenticator bound to rpID that answers from origin.
func New(rpID, origin string) (*Authenticator, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, err
	}
	return &Authenticator{RPID: rpID, Origin: origin, Format: "none", key: key, credID: credID}, nil
}

// CredentialID returns the credential id in base64url.
func (a *Authenticator) CredentialID() string {
	return base64.RawURLEncoding.EncodeToString(a.credID)
}

// Attest answers a registration challenge.
func (a *Authenticator) Attest(challenge, name string) (passkey.Attestation, error) {
	cd, err := a.clientData("webauthn.create", challenge)
	if err != nil {
		return passkey.Attestation{}, err
	}
	coseKey, err := cose.NewKey(a.key.Public())
	if err != nil {
		return passkey.Attestation{}, err
	}
	encodedKey, err := coseKey.MarshalCBOR()
	if err != nil {
		return passkey.Attestation{}, err
	}

	ad := a.authData(flagAT)
	ad = append(ad, a.AAGUID[:]...)
	ad = binary.BigEndian.AppendUint16(ad, uint16(len(a.credID)))
	ad = append(ad, a.credID...)
	ad = append(ad, encodedKey...)

	obj, err := cbor.Marshal(map[string]any{
		"fmt":      a.Format,
		"attStmt":  map[string]any{},
		"authData": ad,
	})
	if err != nil {
		return passkey.Attestation{}, err
	}
	return passkey.Attestation{
		ClientDataJSON:    cd,
		AttestationObject: obj,
		Name:              name,
		Transports:        []string{"internal"},
	}, nil
}

// Assert answers an authentication challenge and advances the counter.
func (a *Authenticator) Assert(challenge string) (passkey.Assertion, error) {
	cd, err := a.clientData("webauthn.get", challenge)
	if err != nil {
		return passkey.Assertion{}, err
	}
	if !a.Counterless {
		a.SignCount++
	}
	ad := a.authData(0)
	sig, err := a.sign(ad, cd)
	if err != nil {
		return passkey.Assertion{}, err
	}
	return passkey.Assertion{
		CredentialID:      a.CredentialID(),
		ClientDataJSON:    cd,
		AuthenticatorData: ad,
		Signature:         sig,
	}, nil
}

func (a *Authenticator) clientData(typ, challenge string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":        typ,
		"challenge":   challenge,
		"origin":      a.Origin,
		"crossOrigin": false,
	})
}

func (a *Authenticator) authData(extra byte) []byte {
	rpHash := sha256.Sum256([]byte(a.RPID))
	flags := byte(flagUP) | extra
	if a.UserVerified {
		flags |= flagUV
	}
	if a.Synced {
		flags |= flagBE | flagBS
	}
	out := make([]byte, 0, 37)
	out = append(out, rpHash[:]...)
	out = append(out, flags)
	return binary.BigEndian.AppendUint32(out, a.SignCount)
}

func (a *Authenticator) sign(authData, clientDataJSON []byte) ([]byte, error) {
	cdHash := sha256.Sum256(clientDataJSON)
	msg := append(append([]byte(nil), authData...), cdHash[:]...)
	digest := sha256.Sum256(msg)
	return ecdsa.SignASN1(rand.Reader, a.key, digest[:])
}
