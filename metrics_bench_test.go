package goTrust

import (
	"context"
	"testing"
	"time"
)

// loginPathMetrics are the counters touched by a typical sign-in and refresh.
var loginPathMetrics = [...]MetricID{
	MetricPasskeyLoginSuccess,
	MetricSessionCreated,
	MetricSessionValidated,
	MetricRefreshSuccess,
	MetricOTPSent,
	MetricOTPLoginSuccess,
	MetricStepUpRequired,
	MetricDeviceTrustEstablished,
}

func BenchmarkMetricsInc(b *testing.B) {
	for _, enabled := range []bool{true, false} {
		name := "enabled"
		if !enabled {
			name = "disabled"
		}
		b.Run(name, func(b *testing.B) {
			m := NewMetrics(MetricsConfig{Enabled: enabled})
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				m.Inc(MetricPasskeyLoginSuccess)
			}
		})
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Inc(loginPathMetrics[i%len(loginPathMetrics)])
			i++
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		d := 3 * time.Millisecond
		for pb.Next() {
			m.Observe(MetricValidateLatency, d)
			d += time.Millisecond
			if d > time.Second {
				d = 0
			}
		}
	})
}

func BenchmarkValidateSession(b *testing.B) {
	h := newTestEngine(b, func(b *Builder) {
		b.WithMetricsEnabled(true).WithLatencyHistograms(true)
	})
	issued, err := h.engine.IssueSession(context.Background(), SessionRequest{UserID: "u1", Methods: []string{"passkeys"}})
	if err != nil {
		b.Fatalf("issue session failed: %v", err)
	}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.engine.ValidateSession(ctx, issued.SessionID); err != nil {
			b.Fatalf("validate session failed: %v", err)
		}
	}
}
