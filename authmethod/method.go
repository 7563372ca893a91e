package authmethod

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the factor family of a method.
type Kind string

const (
	KindPasskey        Kind = "PASSKEY"
	KindTOTP           Kind = "TOTP"
	KindSMSOTP         Kind = "SMS_OTP"
	KindEmailOTP       Kind = "EMAIL_OTP"
	KindOAuthGoogle    Kind = "OAUTH_GOOGLE"
	KindOAuthGitHub    Kind = "OAUTH_GITHUB"
	KindOAuthMicrosoft Kind = "OAUTH_MICROSOFT"
)

// ParseKind accepts both the stored upper-case form and the lower-case wire form.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case KindPasskey, KindTOTP, KindSMSOTP, KindEmailOTP, KindOAuthGoogle, KindOAuthGitHub, KindOAuthMicrosoft:
		return k, nil
	}
	return "", fmt.Errorf("unknown authentication method kind %q", s)
}

// IsOAuth reports whether k is one of the OAUTH_* kinds.
func (k Kind) IsOAuth() bool {
	return strings.HasPrefix(string(k), "OAUTH_")
}

// Wire returns the lower-case name used in API payloads and the amr claim.
func (k Kind) Wire() string {
	return strings.ToLower(string(k))
}

// Metadata is the kind-specific payload of a method. The concrete types are
// Totp, SmsOtp, EmailOtp, Passkey and OAuth; the unexported marker keeps the
// set closed so switches over it stay exhaustive.
type Metadata interface {
	kind() Kind
}

// Totp is an authenticator-app secret.
type Totp struct {
	SecretKey string
	Digits    int
	Period    int
	// LastUsedCounter is the time step of the last accepted code.
	LastUsedCounter int64
}

// SmsOtp is a phone number enrolled for SMS codes plus its daily send counter.
type SmsOtp struct {
	PhoneNumber  string
	CountryCode  string
	DailyCount   int
	DailyResetAt time.Time
}

// EmailOtp is an email address enrolled for emailed codes plus its daily send counter.
type EmailOtp struct {
	Email        string
	DailyCount   int
	DailyResetAt time.Time
}

// Passkey is a registered WebAuthn credential.
type Passkey struct {
	CredentialID   string // base64url, no padding
	PublicKey      []byte // COSE_Key
	AAGUID         string
	SignCount      uint32
	BackupEligible bool
	BackupState    bool
	Transports     []string
}

// OAuth is a linked external identity.
type OAuth struct {
	Provider string
	Subject  string
	Email    string
}

func (Totp) kind() Kind     { return KindTOTP }
func (SmsOtp) kind() Kind   { return KindSMSOTP }
func (EmailOtp) kind() Kind { return KindEmailOTP }
func (Passkey) kind() Kind  { return KindPasskey }

func (o OAuth) kind() Kind {
	switch strings.ToLower(o.Provider) {
	case "github":
		return KindOAuthGitHub
	case "microsoft":
		return KindOAuthMicrosoft
	default:
		return KindOAuthGoogle
	}
}

// Method is one configured authentication factor of a user.
type Method struct {
	ID         string
	UserID     string
	Kind       Kind
	Name       string
	Active     bool
	Verified   bool
	Metadata   Metadata
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// New builds a method whose Kind is derived from its metadata.
func New(id, userID string, meta Metadata, now time.Time) Method {
	return Method{
		ID:        id,
		UserID:    userID,
		Kind:      meta.kind(),
		Metadata:  meta,
		CreatedAt: now,
	}
}

// Validate checks that Kind and Metadata agree.
func (m Method) Validate() error {
	if m.ID == "" || m.UserID == "" {
		return fmt.Errorf("authentication method requires id and user id")
	}
	if m.Metadata == nil {
		return fmt.Errorf("authentication method %s has no metadata", m.ID)
	}
	if got := m.Metadata.kind(); got != m.Kind {
		return fmt.Errorf("authentication method %s: kind %s does not match metadata %s", m.ID, m.Kind, got)
	}
	return nil
}

// Usable reports whether the method may be used to sign in. Passkeys are
// verified by the authenticator at registration and count as usable once stored.
func (m Method) Usable() bool {
	if m.Kind == KindPasskey {
		return true
	}
	return m.Active && m.Verified
}

// StepUpCapable reports whether the kind can satisfy an MFA step-up.
func (k Kind) StepUpCapable() bool {
	switch k {
	case KindTOTP, KindPasskey, KindSMSOTP:
		return true
	default:
		return false
	}
}

// DisplayName returns Name, or a generated label when Name is empty.
func (m Method) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	switch meta := m.Metadata.(type) {
	case Passkey:
		return "Passkey"
	case Totp:
		return "Authenticator App"
	case SmsOtp:
		if n := len(meta.PhoneNumber); n >= 4 {
			return "SMS (***" + meta.PhoneNumber[n-4:] + ")"
		}
		return "SMS OTP"
	case EmailOtp:
		return "Email OTP"
	case OAuth:
		return meta.Provider
	default:
		return string(m.Kind)
	}
}

// Target returns the delivery address for code-based kinds.
func (m Method) Target() (string, bool) {
	switch meta := m.Metadata.(type) {
	case SmsOtp:
		return meta.CountryCode + meta.PhoneNumber, true
	case EmailOtp:
		return meta.Email, true
	case Totp, Passkey, OAuth:
		return "", false
	default:
		return "", false
	}
}

// Primary returns the first usable method of kind found in methods. Primary is
// never a stored flag.
func Primary(methods []Method, kind Kind) (Method, bool) {
	for _, m := range methods {
		if m.Kind == kind && m.Active && m.Verified {
			return m, true
		}
	}
	return Method{}, false
}
