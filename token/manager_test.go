package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m, err := NewManager(DefaultConfig(), StaticKey(testKey), clock.now)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, clock
}

func TestSignupTokenLifecycle(t *testing.T) {
	m, clock := newTestManager(t)

	tok, err := m.IssueSignupToken("a@example.com", "Ada")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(tok, "v4.local.") {
		t.Fatalf("expected v4.local token, got %q", tok[:12])
	}

	c, err := m.ValidateSignupToken(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.Email != "a@example.com" || c.Name != "Ada" || c.Purpose != PurposeSignup || c.Subject == "" {
		t.Fatalf("unexpected claims %+v", c)
	}

	clock.advance(15*time.Minute + time.Second)
	if _, err := m.ValidateSignupToken(tok); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestPurposeMismatchRejected(t *testing.T) {
	m, _ := newTestManager(t)
	signup, err := m.IssueSignupToken("a@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = m.ValidateAccessToken(signup)
	if !errors.Is(err, autherr.ErrInvalidPurpose) || !errors.Is(err, autherr.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}

	pair, err := m.IssueSessionTokenPair(SessionRequest{UserID: "u-1", Methods: []string{MethodPasskey}, ACR: 2})
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if _, err := m.ValidateSignupToken(pair.Access); !errors.Is(err, autherr.ErrInvalidPurpose) {
		t.Fatalf("access accepted as signup: %v", err)
	}
	if _, err := m.ValidateAccessToken(pair.Refresh); !errors.Is(err, autherr.ErrInvalidPurpose) {
		t.Fatalf("refresh accepted as access: %v", err)
	}
}

func TestTamperedAndForeignTokensRejected(t *testing.T) {
	m, clock := newTestManager(t)
	tok, err := m.IssueSignupToken("a@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tampered := tok[:len(tok)-2] + "AA"
	if tampered == tok {
		tampered = tok[:len(tok)-2] + "BB"
	}
	if _, err := m.ValidateSignupToken(tampered); !errors.Is(err, autherr.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for tampered token, got %v", err)
	}

	other, err := NewManager(DefaultConfig(), StaticKey([]byte("another key of a different length")), clock.now)
	if err != nil {
		t.Fatalf("other manager: %v", err)
	}
	if _, err := other.ValidateSignupToken(tok); !errors.Is(err, autherr.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken under foreign key, got %v", err)
	}
	if _, err := m.ValidateSignupToken("garbage"); !errors.Is(err, autherr.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestSessionPairCarriesClaims(t *testing.T) {
	m, clock := newTestManager(t)
	pair, err := m.IssueSessionTokenPair(SessionRequest{
		UserID:   "u-1",
		Email:    "a@example.com",
		Methods:  []string{MethodPasskey, MethodTOTP},
		ACR:      3,
		DeviceID: "dev-9",
	})
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if pair.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	if !pair.AccessExpiresAt.Equal(clock.t.Add(30 * time.Minute)) {
		t.Fatalf("access expiry %v", pair.AccessExpiresAt)
	}
	if !pair.RefreshExpiresAt.Equal(clock.t.Add(7 * 24 * time.Hour)) {
		t.Fatalf("refresh expiry %v", pair.RefreshExpiresAt)
	}

	c, err := m.ValidateAccessToken(pair.Access)
	if err != nil {
		t.Fatalf("validate access: %v", err)
	}
	if c.ACRLevel() != 3 || c.SessionID != pair.SessionID || c.DeviceID != "dev-9" {
		t.Fatalf("unexpected claims %+v", c)
	}
	if got := c.AMR; len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("unexpected amr %v", got)
	}
}

func TestRefreshAccessToken(t *testing.T) {
	m, clock := newTestManager(t)
	pair, err := m.IssueSessionTokenPair(SessionRequest{UserID: "u-1", Methods: []string{MethodSMSOTP}, ACR: 1})
	if err != nil {
		t.Fatalf("pair: %v", err)
	}

	clock.advance(45 * time.Minute)
	if _, err := m.ValidateAccessToken(pair.Access); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("expected access expired, got %v", err)
	}

	access, claims, err := m.RefreshAccessToken(pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if claims.SessionID != pair.SessionID || claims.Subject != "u-1" {
		t.Fatalf("unexpected refreshed claims %+v", claims)
	}
	if _, err := m.ValidateAccessToken(access); err != nil {
		t.Fatalf("refreshed access invalid: %v", err)
	}

	if _, _, err := m.RefreshAccessToken(pair.Access); !errors.Is(err, autherr.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for access used as refresh, got %v", err)
	}
	if _, _, err := m.RefreshAccessToken("v4.local.bogus"); !errors.Is(err, autherr.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for bogus refresh, got %v", err)
	}

	clock.advance(7 * 24 * time.Hour)
	if _, _, err := m.RefreshAccessToken(pair.Refresh); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestMissingKeyFailsClosed(t *testing.T) {
	for name, src := range map[string]KeySource{
		"nil source": nil,
		"empty key":  StaticKey(nil),
		"env unset":  EnvKey("GOTRUST_TEST_KEY_THAT_IS_NOT_SET"),
		"source error": KeyFunc(func() ([]byte, error) {
			return nil, errors.New("vault sealed")
		}),
	} {
		t.Run(name, func(t *testing.T) {
			m, err := NewManager(DefaultConfig(), src, nil)
			if err != nil {
				t.Fatalf("config error: %v", err)
			}
			if m.Unavailable() == nil {
				t.Fatal("expected Unavailable to report the key problem")
			}
			if _, err := m.IssueSignupToken("a@example.com", ""); !errors.Is(err, autherr.ErrServiceUnavailable) {
				t.Fatalf("issue: expected ErrServiceUnavailable, got %v", err)
			}
			if _, err := m.ValidateAccessToken("v4.local.x"); !errors.Is(err, autherr.ErrServiceUnavailable) {
				t.Fatalf("validate: expected ErrServiceUnavailable, got %v", err)
			}
			if _, _, err := m.RefreshAccessToken("v4.local.x"); !errors.Is(err, autherr.ErrServiceUnavailable) {
				t.Fatalf("refresh: expected ErrServiceUnavailable, got %v", err)
			}
		})
	}
}

func TestAddAuthenticationMethodRaisesACR(t *testing.T) {
	m, _ := newTestManager(t)
	pair, err := m.IssueSessionTokenPair(SessionRequest{UserID: "u-1", Methods: []string{MethodPasskey}, ACR: 2})
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	tok, claims, err := m.AddAuthenticationMethod(pair.Access, MethodTOTP)
	if err != nil {
		t.Fatalf("step up: %v", err)
	}
	if claims.ACRLevel() != 3 {
		t.Fatalf("expected acr 3, got %s", claims.ACR)
	}
	again, err := m.ValidateAccessToken(tok)
	if err != nil {
		t.Fatalf("validate stepped-up token: %v", err)
	}
	if again.SessionID != pair.SessionID {
		t.Fatal("step-up lost the session id")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AccessTTL = cfg.RefreshTTL
	if _, err := NewManager(cfg, StaticKey(testKey), nil); err == nil {
		t.Fatal("expected error when access outlives refresh")
	}
	cfg = DefaultConfig()
	cfg.Leeway = time.Hour
	if _, err := NewManager(cfg, StaticKey(testKey), nil); err == nil {
		t.Fatal("expected error for large leeway")
	}
}

func TestDeriveKeyStretchesShortMaterial(t *testing.T) {
	k1, err := deriveKey([]byte("short"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, _ := deriveKey([]byte("short"))
	if len(k1) != keySize || string(k1) != string(k2) {
		t.Fatal("derivation must be deterministic and 32 bytes")
	}
	exact, _ := deriveKey(testKey)
	if string(exact) != string(testKey) {
		t.Fatal("32-byte material must be used as is")
	}
}
