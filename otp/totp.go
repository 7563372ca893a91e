package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPConfig tunes RFC 6238 verification.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string // SHA1 (default), SHA256, SHA512
	Skew      int    // accepted steps either side of now
}

// TOTP verifies authenticator-app codes. It holds no state beyond its config.
type TOTP struct {
	config TOTPConfig
}

// NewTOTP fills config defaults: 6 digits, 30 s, SHA1, skew 1.
func NewTOTP(cfg TOTPConfig) *TOTP {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Skew < 0 {
		cfg.Skew = 0
	}
	return &TOTP{config: cfg}
}

// GenerateSecret returns a fresh 160-bit secret as unpadded base32.
func (t *TOTP) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// URI rendered as a QR code.
func (t *TOTP) ProvisionURI(secretBase32, account string) string {
	issuer := t.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(t.config.Period))
	v.Set("digits", strconv.Itoa(t.config.Digits))
	v.Set("algorithm", strings.ToUpper(t.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyCode checks code against a base32 secret at now, tolerating the
// configured skew, and returns the time-step counter that matched. It has no
// side effects; callers that must refuse replays persist the counter and
// reject any code whose counter is not greater.
func (t *TOTP) VerifyCode(secretBase32, code string, now time.Time) (bool, int64, error) {
	secret, err := secretEncoding.DecodeString(strings.ToUpper(strings.TrimRight(secretBase32, "=")))
	if err != nil {
		return false, 0, fmt.Errorf("decode totp secret: %w", err)
	}
	return t.verifyRaw(secret, code, now)
}

// CodeAt returns the code a compliant authenticator shows at the given time.
func (t *TOTP) CodeAt(secretBase32 string, at time.Time) (string, error) {
	secret, err := secretEncoding.DecodeString(strings.ToUpper(strings.TrimRight(secretBase32, "=")))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	return hotpCode(secret, at.Unix()/int64(t.config.Period), t.config.Digits, t.config.Algorithm)
}

func (t *TOTP) verifyRaw(secret []byte, code string, now time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != t.config.Digits || !isNumeric(trimmed) {
		return false, 0, nil
	}
	if len(secret) == 0 {
		return false, 0, errors.New("empty totp secret")
	}

	baseCounter := now.Unix() / int64(t.config.Period)
	for step := -t.config.Skew; step <= t.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, t.config.Digits, t.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}
	return false, 0, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
