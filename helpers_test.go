package goTrust

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/otp"
	"github.com/MrEthical07/goTrust/storage/memory"
	"github.com/MrEthical07/goTrust/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingChannel captures every delivered code.
type recordingChannel struct {
	mu   sync.Mutex
	sent []otp.Delivery
	fail error
}

func (c *recordingChannel) Send(_ context.Context, d otp.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, d)
	return nil
}

func (c *recordingChannel) lastCode(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("expected a delivered code")
	}
	return c.sent[len(c.sent)-1].Code
}

type testHarness struct {
	engine  *Engine
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	clock   *testClock
	channel *recordingChannel
	methods *memory.MethodStore
	devices *memory.DeviceStore
	prefs   *memory.PreferenceStore
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Passkey.RPID = "example.com"
	cfg.Passkey.RPName = "Example"
	cfg.Passkey.Origins = []string{"https://example.com"}
	return cfg
}

func newTestEngine(t testing.TB, opts ...func(*Builder)) *testHarness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	h := &testHarness{
		mr:      mr,
		rdb:     rdb,
		clock:   newTestClock(),
		channel: &recordingChannel{},
		methods: memory.NewMethodStore(),
		devices: memory.NewDeviceStore(),
		prefs:   memory.NewPreferenceStore(),
	}

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithKeySource(token.StaticKey(testKey)).
		WithMethodStore(h.methods).
		WithDeviceStore(h.devices).
		WithPreferenceStore(h.prefs).
		WithChannel(h.channel).
		WithClock(h.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	h.engine = engine

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return h
}

// enrollTOTP stores a verified authenticator app for userID and returns its
// secret.
func (h *testHarness) enrollTOTP(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()

	enrollment, err := h.engine.BeginTOTPRegistration(ctx, userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("begin totp registration failed: %v", err)
	}
	code := h.totpCode(t, enrollment.Secret)
	if _, err := h.engine.CompleteTOTPRegistration(ctx, userID, enrollment.MethodID, code); err != nil {
		t.Fatalf("complete totp registration failed: %v", err)
	}
	// The enrollment code is spent; move to the next time step.
	h.clock.Advance(30 * time.Second)
	return enrollment.Secret
}

func (h *testHarness) totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := h.engine.totp.CodeAt(secret, h.clock.Now())
	if err != nil {
		t.Fatalf("totp code failed: %v", err)
	}
	return code
}

// enrollOTP registers and verifies an SMS or email target for userID.
func (h *testHarness) enrollOTP(t *testing.T, userID string, kind authmethod.Kind, target string) authmethod.Method {
	t.Helper()
	ctx := context.Background()

	m, _, err := h.engine.BeginOTPRegistration(ctx, userID, kind, target)
	if err != nil {
		t.Fatalf("begin otp registration failed: %v", err)
	}
	verified, err := h.engine.CompleteOTPRegistration(ctx, m.ID, h.channel.lastCode(t))
	if err != nil {
		t.Fatalf("complete otp registration failed: %v", err)
	}
	// Let the per-target resend cooldown lapse.
	h.mr.FastForward(2 * time.Minute)
	return verified
}
