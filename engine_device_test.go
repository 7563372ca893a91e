package goTrust

import (
	"context"
	"testing"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/device"
	"github.com/MrEthical07/goTrust/token"
)

func cleanSignals() device.Signals {
	return device.Signals{
		FingerprintConfidence: 0.99,
		PublicKey:             "pk",
		HasLocalStorage:       true,
		HasSessionStorage:     true,
		CookiesEnabled:        true,
		BrowserName:           "Firefox",
		BrowserVersion:        "131",
		OSName:                "Linux",
		OSVersion:             "6.8",
		ScreenResolution:      "2560x1440",
		Timezone:              "Europe/Berlin",
		Language:              "de-DE",
		CanvasFingerprint:     "c4f3",
	}
}

func TestRecordDeviceSightingScoresDevice(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	res, err := h.engine.RecordDeviceSighting(ctx, "", "u1", "vis-1", cleanSignals())
	if err != nil {
		t.Fatalf("record sighting failed: %v", err)
	}
	if res.Device.DeviceID == "" || res.Device.TrustScore != 100 || res.Device.TrustLevel != device.LevelHigh {
		t.Fatalf("unexpected device: %+v", res.Device)
	}
	if res.Blocked || len(res.Recommendations) == 0 {
		t.Fatalf("unexpected assessment: %+v", res)
	}
}

func TestAutoBlockRevokesDeviceSessions(t *testing.T) {
	h := newTestEngine(t, func(b *Builder) { b.WithMetricsEnabled(true) })
	ctx := context.Background()

	first, err := h.engine.RecordDeviceSighting(ctx, "dev-1", "u1", "vis-1", cleanSignals())
	if err != nil {
		t.Fatalf("record sighting failed: %v", err)
	}
	onDevice, err := h.engine.IssueSession(WithDeviceID(ctx, first.Device.DeviceID), SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	elsewhere, err := h.engine.IssueSession(WithDeviceID(ctx, "dev-2"), SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}

	bad := cleanSignals()
	bad.Bot = true
	bad.Tampering = true
	res, err := h.engine.RecordDeviceSighting(ctx, "dev-1", "", "vis-1", bad)
	if err != nil {
		t.Fatalf("record sighting failed: %v", err)
	}
	if !res.Blocked || res.Device.TrustLevel != device.LevelBlocked || res.SessionsRevoked != 1 {
		t.Fatalf("unexpected assessment: %+v", res)
	}

	if status, _ := h.engine.ValidateSession(ctx, onDevice.SessionID); status.Valid {
		t.Fatal("expected session on blocked device to be revoked")
	}
	if status, _ := h.engine.ValidateSession(ctx, elsewhere.SessionID); !status.Valid {
		t.Fatal("expected session on other device to survive")
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricDeviceAutoBlocked]; got != 1 {
		t.Fatalf("expected one auto-block metric, got %d", got)
	}
}

func TestAutoBlockDisabledKeepsSessions(t *testing.T) {
	h := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Device.AutoBlock = false
		b.WithConfig(cfg)
	})
	ctx := context.Background()

	if _, err := h.engine.RecordDeviceSighting(ctx, "dev-1", "u1", "vis-1", cleanSignals()); err != nil {
		t.Fatalf("record sighting failed: %v", err)
	}
	issued, err := h.engine.IssueSession(WithDeviceID(ctx, "dev-1"), SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}

	bad := cleanSignals()
	bad.VPN, bad.Proxy, bad.Bot = true, true, true
	res, err := h.engine.RecordDeviceSighting(ctx, "dev-1", "", "vis-1", bad)
	if err != nil {
		t.Fatalf("record sighting failed: %v", err)
	}
	if !res.Blocked || res.SessionsRevoked != 0 {
		t.Fatalf("unexpected assessment: %+v", res)
	}
	if status, _ := h.engine.ValidateSession(ctx, issued.SessionID); !status.Valid {
		t.Fatal("expected session to survive without auto-block")
	}
}

func TestDeviceTrustLifecycle(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	if _, err := h.engine.RecordDeviceSighting(ctx, "dev-1", "u1", "vis-1", cleanSignals()); err != nil {
		t.Fatalf("record sighting failed: %v", err)
	}
	trustToken, err := h.engine.EstablishDeviceTrust(ctx, "u1", "dev-1", "vis-1")
	if err != nil {
		t.Fatalf("establish trust failed: %v", err)
	}
	if trustToken == "" {
		t.Fatal("expected a device trust token")
	}

	v, err := h.engine.VerifyDeviceTrust(ctx, "vis-1", trustToken)
	if err != nil {
		t.Fatalf("verify trust failed: %v", err)
	}
	if !v.Trusted || v.DeviceID != "dev-1" || v.UserID != "u1" {
		t.Fatalf("unexpected verdict: %+v", v)
	}

	trusted, err := h.engine.ListTrustedDevices(ctx, "u1")
	if err != nil {
		t.Fatalf("list trusted failed: %v", err)
	}
	if len(trusted) != 1 {
		t.Fatalf("expected one trusted device, got %d", len(trusted))
	}

	if err := h.engine.RevokeDeviceTrust(ctx, "u1", "dev-1"); err != nil {
		t.Fatalf("revoke trust failed: %v", err)
	}
	v, err = h.engine.VerifyDeviceTrust(ctx, "vis-1", trustToken)
	if err != nil {
		t.Fatalf("verify trust failed: %v", err)
	}
	if v.Trusted {
		t.Fatal("expected revoked device to be untrusted")
	}
}

func TestDeviceTrustTokenMustMatchDevice(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	for _, id := range []string{"dev-1", "dev-2"} {
		if _, err := h.engine.RecordDeviceSighting(ctx, id, "u1", "vis-"+id, cleanSignals()); err != nil {
			t.Fatalf("record sighting failed: %v", err)
		}
	}
	if _, err := h.engine.EstablishDeviceTrust(ctx, "u1", "dev-1", "vis-dev-1"); err != nil {
		t.Fatalf("establish trust failed: %v", err)
	}
	other, err := h.engine.EstablishDeviceTrust(ctx, "u1", "dev-2", "vis-dev-2")
	if err != nil {
		t.Fatalf("establish trust failed: %v", err)
	}

	v, err := h.engine.VerifyDeviceTrust(ctx, "vis-dev-1", other)
	if err != nil {
		t.Fatalf("verify trust failed: %v", err)
	}
	if v.Trusted {
		t.Fatalf("expected token of another device to be rejected, got %+v", v)
	}

	v, err = h.engine.VerifyDeviceTrust(ctx, "vis-dev-1", "v4.local.bogus")
	if err != nil {
		t.Fatalf("verify trust failed: %v", err)
	}
	if v.Trusted {
		t.Fatal("expected invalid token to be rejected")
	}
}

func TestEstablishDeviceTrustLowScore(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	s := device.Signals{VPN: true, Proxy: true, Incognito: true}
	if _, err := h.engine.RecordDeviceSighting(ctx, "dev-1", "u1", "vis-1", s); err != nil {
		t.Fatalf("record sighting failed: %v", err)
	}
	tok, err := h.engine.EstablishDeviceTrust(ctx, "u1", "dev-1", "vis-1")
	if err != nil {
		t.Fatalf("establish trust failed: %v", err)
	}
	if tok != "" {
		t.Fatal("expected no token for a low score device")
	}
}

func TestEstablishDeviceTrustForeignDevice(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	if _, err := h.engine.RecordDeviceSighting(ctx, "dev-1", "u1", "vis-1", cleanSignals()); err != nil {
		t.Fatalf("record sighting failed: %v", err)
	}
	if _, err := h.engine.EstablishDeviceTrust(ctx, "u2", "dev-1", "vis-1"); autherr.KindOf(err) != autherr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
