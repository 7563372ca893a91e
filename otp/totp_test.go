package otp

import (
	"strings"
	"testing"
	"time"
)

func TestTOTPVerifyRFCVectorsSHA1(t *testing.T) {
	m := NewTOTP(TOTPConfig{
		Issuer:    "goTrust",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      0,
	})
	secret := []byte("12345678901234567890")
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range cases {
		ok, _, err := m.verifyRaw(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA1 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPVerifyRFCVectorsSHA256(t *testing.T) {
	m := NewTOTP(TOTPConfig{
		Issuer:    "goTrust",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA256",
		Skew:      0,
	})
	secret := []byte("12345678901234567890123456789012")
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "46119246"},
		{1111111109, "68084774"},
		{1111111111, "67062674"},
		{1234567890, "91819424"},
		{2000000000, "90698825"},
		{20000000000, "77737706"},
	}

	for _, tc := range cases {
		ok, _, err := m.verifyRaw(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA256 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPVerifyRFCVectorsSHA512(t *testing.T) {
	m := NewTOTP(TOTPConfig{
		Issuer:    "goTrust",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA512",
		Skew:      0,
	})
	secret := []byte("1234567890123456789012345678901234567890123456789012345678901234")
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "90693936"},
		{1111111109, "25091201"},
		{1111111111, "99943326"},
		{1234567890, "93441116"},
		{2000000000, "38618901"},
		{20000000000, "47863826"},
	}

	for _, tc := range cases {
		ok, _, err := m.verifyRaw(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA512 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestTOTPDriftWindowAcceptsAdjacentStep(t *testing.T) {
	m := NewTOTP(TOTPConfig{
		Issuer:    "goTrust",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})
	secret := []byte("12345678901234567890")
	now := time.Unix(1234567890, 0)
	prevCounter := (now.Unix() / 30) - 1
	code, err := hotpCode(secret, prevCounter, 6, "SHA1")
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}

	ok, _, err := m.verifyRaw(secret, code, now)
	if err != nil || !ok {
		t.Fatalf("expected skew code accepted, ok=%v err=%v", ok, err)
	}
}

func TestTOTPWrongDigitsRejected(t *testing.T) {
	m := NewTOTP(TOTPConfig{
		Issuer:    "goTrust",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})
	secret := []byte("12345678901234567890")
	ok, _, err := m.verifyRaw(secret, "12345678", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong-length code to be rejected")
	}
}

func TestTOTPVerifyCodeAcceptsBase32Secret(t *testing.T) {
	m := NewTOTP(TOTPConfig{Issuer: "goTrust"})
	secret, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	now := time.Unix(1700000000, 0)
	code, err := m.CodeAt(secret, now)
	if err != nil {
		t.Fatalf("CodeAt failed: %v", err)
	}

	ok, counter, err := m.VerifyCode(strings.ToLower(secret), code, now)
	if err != nil || !ok {
		t.Fatalf("expected code accepted, ok=%v err=%v", ok, err)
	}
	if counter != now.Unix()/30 {
		t.Fatalf("expected matched counter %d, got %d", now.Unix()/30, counter)
	}
	ok, _, err = m.VerifyCode(secret, code, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected code outside the skew window to be rejected")
	}
}

func TestTOTPVerifyCodeRejectsBadSecret(t *testing.T) {
	m := NewTOTP(TOTPConfig{})
	if _, _, err := m.VerifyCode("not base32!", "123456", time.Now()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTOTPProvisionURI(t *testing.T) {
	m := NewTOTP(TOTPConfig{Issuer: "goTrust", Digits: 6, Period: 30, Algorithm: "sha256"})
	uri := m.ProvisionURI("JBSWY3DPEHPK3PXP", "alice@example.com")

	if !strings.HasPrefix(uri, "otpauth://totp/goTrust:alice@example.com?") {
		t.Fatalf("unexpected uri prefix: %s", uri)
	}
	for _, want := range []string{"secret=JBSWY3DPEHPK3PXP", "issuer=goTrust", "algorithm=SHA256", "digits=6", "period=30"} {
		if !strings.Contains(uri, want) {
			t.Fatalf("expected %q in %s", want, uri)
		}
	}
}
