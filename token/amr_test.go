package token

import (
	"slices"
	"testing"

	"github.com/MrEthical07/goTrust/authmethod"
)

func TestCalculateACR(t *testing.T) {
	tests := []struct {
		name    string
		methods []string
		partial bool
		want    int
	}{
		{"none", nil, false, 0},
		{"partial passkey", []string{MethodPasskey}, true, 0},
		{"password only", []string{MethodPassword}, false, 1},
		{"sms only", []string{MethodSMSOTP}, false, 1},
		{"passkey alone", []string{MethodPasskey}, false, 2},
		{"two non-passkey", []string{MethodPassword, MethodTOTP}, false, 2},
		{"passkey plus totp", []string{MethodPasskey, MethodTOTP}, false, 3},
		{"duplicate passkey", []string{MethodPasskey, MethodPasskey}, false, 2},
		{"unknown ignored", []string{"carrier-pigeon"}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateACR(tt.methods, tt.partial); got != tt.want {
				t.Fatalf("CalculateACR(%v, %v) = %d, want %d", tt.methods, tt.partial, got, tt.want)
			}
		})
	}
}

func TestAMRCodes(t *testing.T) {
	codes := EncodeAMR([]string{MethodPassword, MethodPasskey, MethodTOTP, MethodEmailOTP, "nope"})
	if !slices.Equal(codes, []int{1, 3, 4, 5}) {
		t.Fatalf("unexpected codes %v", codes)
	}
	if names := DecodeAMR([]int{2, 6, 99}); !slices.Equal(names, []string{MethodSMSOTP, MethodBackupCodes}) {
		t.Fatalf("unexpected names %v", names)
	}
	if MethodName(authmethod.KindPasskey) != MethodPasskey || MethodName(authmethod.KindEmailOTP) != MethodEmailOTP {
		t.Fatal("kind to method name mapping broken")
	}
}

func TestAMRNumberingIsFixed(t *testing.T) {
	want := []string{
		MethodPassword, MethodSMSOTP, MethodPasskey, MethodTOTP, MethodEmailOTP, MethodBackupCodes,
		MethodGoogle, MethodFacebook, MethodApple, MethodMicrosoft, MethodGitHub,
	}
	for i, name := range want {
		if got := EncodeAMR([]string{name}); !slices.Equal(got, []int{i + 1}) {
			t.Fatalf("%s encodes as %v, want [%d]", name, got, i+1)
		}
	}
}
