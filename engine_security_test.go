package goTrust

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/mfa"
	"github.com/MrEthical07/goTrust/token"
)

func TestSecurityOverviewGroupsByWireKind(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()
	h.enrollTOTP(t, "u1")
	h.enrollOTP(t, "u1", authmethod.KindSMSOTP, "+15550100200")
	h.enrollOTP(t, "u1", authmethod.KindEmailOTP, "u1@example.com")

	overview, err := h.engine.SecurityOverview(ctx, "u1")
	if err != nil {
		t.Fatalf("security overview failed: %v", err)
	}
	if overview.UserID != "u1" {
		t.Fatalf("unexpected user id %q", overview.UserID)
	}
	for _, kind := range []authmethod.Kind{authmethod.KindTOTP, authmethod.KindSMSOTP, authmethod.KindEmailOTP} {
		got := overview.Methods[kind.Wire()]
		if len(got) != 1 || !got[0].Verified || got[0].CreatedAt == "" {
			t.Fatalf("kind %s: unexpected summaries %+v", kind.Wire(), got)
		}
	}
	if len(overview.Methods[authmethod.KindPasskey.Wire()]) != 0 {
		t.Fatal("expected no passkeys")
	}
	// Email OTP does not count towards enforcement.
	if !overview.MFA.CanEnable || len(overview.MFA.ConfiguredMethods) != 2 || overview.MFA.CurrentACR != 2 {
		t.Fatalf("unexpected mfa settings: %+v", overview.MFA)
	}
}

func TestEnableEnforcementRequiresQualifyingMethod(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()
	h.enrollOTP(t, "u1", authmethod.KindEmailOTP, "u1@example.com")

	_, err := h.engine.UpdateMfaEnforcement(ctx, "u1", true)
	if autherr.KindOf(err) != autherr.KindValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}

	h.enrollTOTP(t, "u1")
	settings, err := h.engine.UpdateMfaEnforcement(ctx, "u1", true)
	if err != nil {
		t.Fatalf("enable enforcement failed: %v", err)
	}
	if !settings.Enforced || settings.MinimumACR != 2 {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}

func TestDisableEnforcementAlwaysAllowed(t *testing.T) {
	h := newTestEngine(t)
	settings, err := h.engine.UpdateMfaEnforcement(context.Background(), "nobody", false)
	if err != nil {
		t.Fatalf("disable enforcement failed: %v", err)
	}
	if settings.Enforced || settings.CanEnable {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}

func TestUpdateMinimumACRValidates(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	for _, acr := range []int{0, 1, 4} {
		if _, err := h.engine.UpdateMinimumACR(ctx, "u1", acr); autherr.KindOf(err) != autherr.KindValidationFailed {
			t.Fatalf("acr %d: expected validation failure, got %v", acr, err)
		}
	}
	settings, err := h.engine.UpdateMinimumACR(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("update minimum acr failed: %v", err)
	}
	if settings.MinimumACR != 3 {
		t.Fatalf("expected minimum 3, got %d", settings.MinimumACR)
	}
}

func TestCheckStepUpRequired(t *testing.T) {
	h := newTestEngine(t, func(b *Builder) { b.WithMetricsEnabled(true) })
	ctx := context.Background()
	h.enrollTOTP(t, "u1")

	res, err := h.engine.CheckStepUpRequired(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("step-up check failed: %v", err)
	}
	if res.Required {
		t.Fatal("expected no step-up while enforcement is off")
	}

	if _, err := h.engine.UpdateMfaEnforcement(ctx, "u1", true); err != nil {
		t.Fatalf("enable enforcement failed: %v", err)
	}
	res, err = h.engine.CheckStepUpRequired(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("step-up check failed: %v", err)
	}
	if !res.Required || res.MinimumACR != 2 || len(res.AvailableMethods) != 1 {
		t.Fatalf("unexpected step-up result: %+v", res)
	}
	if res.AvailableMethods[0].Type != authmethod.KindTOTP.Wire() {
		t.Fatalf("unexpected available method: %+v", res.AvailableMethods[0])
	}

	res, err = h.engine.CheckStepUpRequired(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("step-up check failed: %v", err)
	}
	if res.Required {
		t.Fatalf("expected acr 2 to satisfy the floor, got %+v", res)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricStepUpRequired]; got != 1 {
		t.Fatalf("expected one step-up metric, got %d", got)
	}
}

func TestCheckStepUpForToken(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()
	h.enrollTOTP(t, "u1")
	if _, err := h.engine.UpdateMfaEnforcement(ctx, "u1", true); err != nil {
		t.Fatalf("enable enforcement failed: %v", err)
	}
	issued, err := h.engine.IssueSession(ctx, SessionRequest{UserID: "u1", Methods: []string{token.MethodTOTP}})
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}

	res, claims, err := h.engine.CheckStepUpForToken(ctx, issued.AccessToken)
	if err != nil {
		t.Fatalf("step-up check failed: %v", err)
	}
	if !res.Required || claims.Subject != "u1" {
		t.Fatalf("unexpected result %+v for %+v", res, claims)
	}

	if _, _, err := h.engine.CheckStepUpForToken(ctx, "v4.local.garbage"); autherr.KindOf(err) != autherr.KindInvalidToken {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestRemoveLastMethodDisablesEnforcement(t *testing.T) {
	sink := NewChannelSink(64)
	h := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink).WithMetricsEnabled(true)
	})
	ctx := context.Background()
	h.enrollTOTP(t, "u1")
	methods, err := h.engine.ListMethods(ctx, "u1")
	if err != nil {
		t.Fatalf("list methods failed: %v", err)
	}
	methodID := methods[0].ID

	if _, err := h.engine.UpdateMfaEnforcement(ctx, "u1", true); err != nil {
		t.Fatalf("enable enforcement failed: %v", err)
	}

	check, err := h.engine.CheckMethodRemoval(ctx, "u1", methodID)
	if err != nil {
		t.Fatalf("removal check failed: %v", err)
	}
	if check.SafeToRemove || !check.DisablesEnforcement || check.RemainingQualifying != 0 {
		t.Fatalf("unexpected removal check: %+v", check)
	}

	settings, err := h.engine.RemoveMethod(ctx, "u1", methodID)
	if err != nil {
		t.Fatalf("remove method failed: %v", err)
	}
	if settings.Enforced || settings.CanEnable {
		t.Fatalf("expected enforcement off after last method removed, got %+v", settings)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricMethodRemoved]; got != 1 {
		t.Fatalf("expected one removal metric, got %d", got)
	}

	h.engine.Close()
	seen := map[string]bool{}
	for {
		select {
		case ev := <-sink.Events():
			seen[ev.EventType] = true
			continue
		default:
		}
		break
	}
	for _, want := range []string{auditEventMethodRemoved, auditEventMFAAutoDisabled} {
		if !seen[want] {
			t.Fatalf("expected audit event %q, got %v", want, seen)
		}
	}
}

func TestRemoveMethodOfAnotherUser(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()
	m := h.enrollOTP(t, "u2", authmethod.KindSMSOTP, "+15550100201")

	if _, err := h.engine.RemoveMethod(ctx, "u1", m.ID); autherr.KindOf(err) != autherr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.methods.Get(ctx, m.ID); err != nil {
		t.Fatalf("expected method to survive, got %v", err)
	}
}

func TestEnforcementSettingsCacheInvalidatedOnEnrollment(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	before, err := h.engine.GetEnforcementSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if before.CanEnable {
		t.Fatal("expected no qualifying methods yet")
	}

	h.enrollTOTP(t, "u1")
	after, err := h.engine.GetEnforcementSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if !after.CanEnable || after.CurrentACR != 2 {
		t.Fatalf("expected cache refreshed after enrollment, got %+v", after)
	}
}

func TestEnforcementSettingsCacheServesUntilTTL(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	if _, err := h.engine.GetEnforcementSettings(ctx, "u1"); err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	// Writes that bypass the engine are only seen once the entry expires.
	if err := h.prefs.SavePreferences(ctx, "u1", mfa.Preferences{MinimumACR: 3}); err != nil {
		t.Fatalf("save preferences failed: %v", err)
	}
	cached, _ := h.engine.GetEnforcementSettings(ctx, "u1")
	if cached.MinimumACR != 2 {
		t.Fatalf("expected cached minimum 2, got %d", cached.MinimumACR)
	}

	h.clock.Advance(time.Minute)
	fresh, _ := h.engine.GetEnforcementSettings(ctx, "u1")
	if fresh.MinimumACR != 3 {
		t.Fatalf("expected minimum 3 after expiry, got %d", fresh.MinimumACR)
	}
}
