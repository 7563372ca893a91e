package authmethod

import (
	"testing"
	"time"
)

func TestNewDerivesKindFromMetadata(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cases := []struct {
		meta Metadata
		want Kind
	}{
		{Totp{SecretKey: "ABC"}, KindTOTP},
		{SmsOtp{PhoneNumber: "5551234"}, KindSMSOTP},
		{EmailOtp{Email: "a@example.com"}, KindEmailOTP},
		{Passkey{CredentialID: "cred"}, KindPasskey},
		{OAuth{Provider: "github"}, KindOAuthGitHub},
		{OAuth{Provider: "google"}, KindOAuthGoogle},
	}
	for _, tc := range cases {
		m := New("m1", "u1", tc.meta, now)
		if m.Kind != tc.want {
			t.Fatalf("kind = %s, want %s", m.Kind, tc.want)
		}
		if err := m.Validate(); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}
}

func TestValidateRejectsMismatchedKind(t *testing.T) {
	m := Method{ID: "m1", UserID: "u1", Kind: KindSMSOTP, Metadata: Totp{}}
	if err := m.Validate(); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestPrimaryIsFirstActiveVerified(t *testing.T) {
	methods := []Method{
		{ID: "a", Kind: KindTOTP, Active: true, Verified: false},
		{ID: "b", Kind: KindTOTP, Active: false, Verified: true},
		{ID: "c", Kind: KindTOTP, Active: true, Verified: true},
		{ID: "d", Kind: KindTOTP, Active: true, Verified: true},
	}
	got, ok := Primary(methods, KindTOTP)
	if !ok || got.ID != "c" {
		t.Fatalf("Primary = %+v, %v", got, ok)
	}
	if _, ok := Primary(methods, KindSMSOTP); ok {
		t.Fatal("no SMS method expected")
	}
}

func TestUsable(t *testing.T) {
	if !(Method{Kind: KindPasskey}).Usable() {
		t.Fatal("stored passkey should be usable")
	}
	if (Method{Kind: KindTOTP, Active: true}).Usable() {
		t.Fatal("unverified totp should not be usable")
	}
}

func TestDisplayNameMasksPhone(t *testing.T) {
	m := New("m", "u", SmsOtp{PhoneNumber: "5551234567", CountryCode: "+1"}, time.Now())
	if got := m.DisplayName(); got != "SMS (***4567)" {
		t.Fatalf("DisplayName = %q", got)
	}
	target, ok := m.Target()
	if !ok || target != "+15551234567" {
		t.Fatalf("Target = %q, %v", target, ok)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("sms_otp")
	if err != nil || k != KindSMSOTP {
		t.Fatalf("ParseKind = %s, %v", k, err)
	}
	if _, err := ParseKind("password"); err == nil {
		t.Fatal("expected error")
	}
}
