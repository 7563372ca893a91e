package passkey

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/fido-device-onboard/go-fdo/cbor"
	"github.com/fido-device-onboard/go-fdo/cose"
)

const (
	flagUserPresent      = 0x01
	flagUserVerified     = 0x04
	flagBackupEligible   = 0x08
	flagBackupState      = 0x10
	flagAttestedCredData = 0x40

	authDataMinLen = 37
	aaguidLen      = 16

	clientDataTypeGet    = "webauthn.get"
	clientDataTypeCreate = "webauthn.create"
)

var b64url = base64.RawURLEncoding

type clientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin"`
}

func parseClientData(raw []byte, wantType string, origins []string) (clientData, error) {
	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return clientData{}, fmt.Errorf("%w: client data: %v", autherr.ErrInvalidCredential, err)
	}
	if cd.Type != wantType {
		return clientData{}, fmt.Errorf("%w: client data type %q", autherr.ErrInvalidCredential, cd.Type)
	}
	if cd.Challenge == "" {
		return clientData{}, fmt.Errorf("%w: client data has no challenge", autherr.ErrChallengeInvalid)
	}
	cd.Challenge = strings.TrimRight(cd.Challenge, "=")
	if !originAllowed(cd.Origin, origins) {
		return clientData{}, fmt.Errorf("%w: origin %q", autherr.ErrInvalidCredential, cd.Origin)
	}
	return cd, nil
}

func originAllowed(origin string, allowed []string) bool {
	for _, o := range allowed {
		if o == origin {
			return true
		}
	}
	return false
}

type authenticatorData struct {
	RPIDHash     [32]byte
	Flags        byte
	SignCount    uint32
	AAGUID       []byte
	CredentialID []byte
	PublicKey    []byte // COSE_Key, re-encoded
}

func (a authenticatorData) has(flag byte) bool { return a.Flags&flag != 0 }

func parseAuthenticatorData(raw []byte) (authenticatorData, error) {
	if len(raw) < authDataMinLen {
		return authenticatorData{}, fmt.Errorf("%w: authenticator data too short", autherr.ErrInvalidCredential)
	}
	var ad authenticatorData
	copy(ad.RPIDHash[:], raw[:32])
	ad.Flags = raw[32]
	ad.SignCount = binary.BigEndian.Uint32(raw[33:37])

	if !ad.has(flagAttestedCredData) {
		return ad, nil
	}

	rest := raw[authDataMinLen:]
	if len(rest) < aaguidLen+2 {
		return authenticatorData{}, fmt.Errorf("%w: attested credential data truncated", autherr.ErrInvalidCredential)
	}
	ad.AAGUID = append([]byte(nil), rest[:aaguidLen]...)
	idLen := int(binary.BigEndian.Uint16(rest[aaguidLen : aaguidLen+2]))
	rest = rest[aaguidLen+2:]
	if len(rest) < idLen {
		return authenticatorData{}, fmt.Errorf("%w: credential id truncated", autherr.ErrInvalidCredential)
	}
	ad.CredentialID = append([]byte(nil), rest[:idLen]...)

	var key cose.Key
	if err := cbor.NewDecoder(bytes.NewReader(rest[idLen:])).Decode(&key); err != nil {
		return authenticatorData{}, fmt.Errorf("%w: credential public key: %v", autherr.ErrInvalidCredential, err)
	}
	if _, err := publicKey(key); err != nil {
		return authenticatorData{}, err
	}
	encoded, err := key.MarshalCBOR()
	if err != nil {
		return authenticatorData{}, fmt.Errorf("%w: credential public key: %v", autherr.ErrInvalidCredential, err)
	}
	ad.PublicKey = encoded
	return ad, nil
}

type attestationObject struct {
	Format   string
	AuthData []byte
}

func parseAttestationObject(raw []byte) (attestationObject, error) {
	var fields map[string]cbor.RawBytes
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return attestationObject{}, fmt.Errorf("%w: attestation object: %v", autherr.ErrInvalidCredential, err)
	}
	var obj attestationObject
	if f, ok := fields["fmt"]; ok {
		if err := cbor.Unmarshal(f, &obj.Format); err != nil {
			return attestationObject{}, fmt.Errorf("%w: attestation fmt: %v", autherr.ErrInvalidCredential, err)
		}
	}
	ad, ok := fields["authData"]
	if !ok {
		return attestationObject{}, fmt.Errorf("%w: attestation object has no authData", autherr.ErrInvalidCredential)
	}
	if err := cbor.Unmarshal(ad, &obj.AuthData); err != nil {
		return attestationObject{}, fmt.Errorf("%w: attestation authData: %v", autherr.ErrInvalidCredential, err)
	}
	return obj, nil
}

func publicKey(key cose.Key) (*ecdsa.PublicKey, error) {
	pub, err := key.Public()
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported credential key: %v", autherr.ErrInvalidCredential, err)
	}
	ec, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported credential key type %T", autherr.ErrInvalidCredential, pub)
	}
	return ec, nil
}

// verifySignature checks an assertion signature made over
// authenticatorData || SHA-256(clientDataJSON).
func verifySignature(coseKey, authData, clientDataJSON, sig []byte) error {
	var key cose.Key
	if err := key.UnmarshalCBOR(coseKey); err != nil {
		return fmt.Errorf("%w: stored public key: %v", autherr.ErrInvalidCredential, err)
	}
	pub, err := publicKey(key)
	if err != nil {
		return err
	}

	cdHash := sha256.Sum256(clientDataJSON)
	signed := make([]byte, 0, len(authData)+len(cdHash))
	signed = append(signed, authData...)
	signed = append(signed, cdHash[:]...)

	digest, err := digestFor(pub.Curve, signed)
	if err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(pub, digest, sig) {
		return fmt.Errorf("%w: signature mismatch", autherr.ErrInvalidCredential)
	}
	return nil
}

func digestFor(curve elliptic.Curve, msg []byte) ([]byte, error) {
	switch curve {
	case elliptic.P256():
		sum := sha256.Sum256(msg)
		return sum[:], nil
	case elliptic.P384():
		sum := sha512.Sum384(msg)
		return sum[:], nil
	case elliptic.P521():
		sum := sha512.Sum512(msg)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("%w: unsupported curve", autherr.ErrInvalidCredential)
	}
}

func formatAAGUID(b []byte) string {
	if len(b) != aaguidLen {
		return ""
	}
	h := hex.EncodeToString(b)
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

func checkRPID(ad authenticatorData, rpID string) error {
	want := sha256.Sum256([]byte(rpID))
	if ad.RPIDHash != want {
		return fmt.Errorf("%w: rp id hash mismatch", autherr.ErrInvalidCredential)
	}
	if !ad.has(flagUserPresent) {
		return fmt.Errorf("%w: user presence flag not set", autherr.ErrInvalidCredential)
	}
	return nil
}
