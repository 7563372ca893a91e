package postgres

import (
	"reflect"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/device"
)

func TestMethodModelCarriesLookupColumns(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name       string
		meta       authmethod.Metadata
		credential string
		target     string
	}{
		{"passkey", authmethod.Passkey{CredentialID: "cred", PublicKey: []byte{0xa5}, SignCount: 3, Transports: []string{"usb"}}, "cred", ""},
		{"sms", authmethod.SmsOtp{PhoneNumber: "5550001111", CountryCode: "+1", DailyCount: 2, DailyResetAt: now}, "", "+15550001111"},
		{"email", authmethod.EmailOtp{Email: "a@example.com"}, "", "a@example.com"},
		{"totp", authmethod.Totp{SecretKey: "JBSWY3DPEHPK3PXP", Digits: 6, Period: 30, LastUsedCounter: 56666666}, "", ""},
		{"oauth", authmethod.OAuth{Provider: "github", Subject: "42"}, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := authmethod.New("m-"+tc.name, "u1", tc.meta, now)
			m.Active, m.Verified = true, true

			rec, err := toMethodModel(m)
			if err != nil {
				t.Fatalf("to model: %v", err)
			}
			if got := deref(rec.CredentialID); got != tc.credential {
				t.Fatalf("credential column = %q, want %q", got, tc.credential)
			}
			if got := deref(rec.Target); got != tc.target {
				t.Fatalf("target column = %q, want %q", got, tc.target)
			}
			if rec.LastUsedAt != nil {
				t.Fatal("zero LastUsedAt must be stored as NULL")
			}

			back, err := toMethod(rec)
			if err != nil {
				t.Fatalf("from model: %v", err)
			}
			if !reflect.DeepEqual(back.Metadata, m.Metadata) || back.Kind != m.Kind {
				t.Fatalf("metadata mismatch:\n got %#v\nwant %#v", back.Metadata, m.Metadata)
			}
		})
	}
}

func TestDecodeMetadataUnknownKind(t *testing.T) {
	if _, err := decodeMetadata("FAX", "{}"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDeviceModelKeepsSignals(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	d := device.Identity{
		DeviceID:   "d1",
		UserID:     "u1",
		VisitorID:  "v1",
		Signals:    device.Signals{VPN: true, BrowserName: "Firefox", FingerprintConfidence: 0.97},
		TrustScore: 64,
		TrustLevel: device.LevelMedium,
		FirstSeen:  now,
		LastSeen:   now,
	}
	rec, err := toDeviceModel(d)
	if err != nil {
		t.Fatal(err)
	}
	back, err := toDevice(rec)
	if err != nil {
		t.Fatal(err)
	}
	if back.Signals != d.Signals || back.TrustLevel != d.TrustLevel || !back.TrustExpiresAt.IsZero() {
		t.Fatalf("device mismatch: %+v", back)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
