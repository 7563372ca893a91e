package token

import (
	"testing"
	"time"
)

func newBenchManager(b *testing.B) *Manager {
	b.Helper()
	m, err := NewManager(DefaultConfig(), StaticKey(testKey), time.Now)
	if err != nil {
		b.Fatalf("new manager: %v", err)
	}
	return m
}

func BenchmarkIssueSessionTokenPair(b *testing.B) {
	m := newBenchManager(b)
	req := SessionRequest{UserID: "u1", Methods: []string{MethodPasskey, MethodTOTP}, ACR: 3}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.IssueSessionTokenPair(req); err != nil {
			b.Fatalf("issue: %v", err)
		}
	}
}

func BenchmarkValidateAccessToken(b *testing.B) {
	m := newBenchManager(b)
	pair, err := m.IssueSessionTokenPair(SessionRequest{UserID: "u1", Methods: []string{MethodPasskey}, ACR: 2})
	if err != nil {
		b.Fatalf("issue: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := m.ValidateAccessToken(pair.Access); err != nil {
				b.Fatalf("validate: %v", err)
			}
		}
	})
}

func BenchmarkRefreshAccessToken(b *testing.B) {
	m := newBenchManager(b)
	pair, err := m.IssueSessionTokenPair(SessionRequest{UserID: "u1", Methods: []string{MethodTOTP}, ACR: 1})
	if err != nil {
		b.Fatalf("issue: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := m.RefreshAccessToken(pair.Refresh); err != nil {
			b.Fatalf("refresh: %v", err)
		}
	}
}
