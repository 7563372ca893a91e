package passkey

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/google/uuid"
)

const challengeBytes = 32

// Config describes the relying party.
type Config struct {
	RPID             string
	RPName           string
	Origins          []string
	ChallengeTTL     time.Duration
	Timeout          time.Duration
	UserVerification string

	// AttestationFormats lists the accepted attestation statement formats.
	AttestationFormats []string
}

// DefaultConfig returns the relying-party defaults for rpID.
func DefaultConfig(rpID string, origins ...string) Config {
	return Config{
		RPID:               rpID,
		RPName:             rpID,
		Origins:            origins,
		ChallengeTTL:       5 * time.Minute,
		Timeout:            60 * time.Second,
		UserVerification:   "preferred",
		AttestationFormats: []string{"none", "packed"},
	}
}

// Options is handed to the browser to start a ceremony.
type Options struct {
	Challenge          string    `json:"challenge"`
	RPID               string    `json:"rpId"`
	RPName             string    `json:"rpName,omitempty"`
	UserID             string    `json:"userId,omitempty"`
	UserName           string    `json:"userName,omitempty"`
	Timeout            int64     `json:"timeout"`
	UserVerification   string    `json:"userVerification"`
	ExcludeCredentials []string  `json:"excludeCredentials,omitempty"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// Assertion is a decoded navigator.credentials.get() response.
type Assertion struct {
	CredentialID      string // base64url
	ClientDataJSON    []byte
	AuthenticatorData []byte
	Signature         []byte
	// UserID, when set, must match the credential owner.
	UserID string
}

// Attestation is a decoded navigator.credentials.create() response.
type Attestation struct {
	ClientDataJSON    []byte
	AttestationObject []byte
	Name              string
	Transports        []string
}

// Result is a verified assertion.
type Result struct {
	Method    authmethod.Method
	UserID    string
	Challenge Challenge
	State     State
}

// Engine runs the registration and authentication ceremonies.
type Engine struct {
	config     Config
	challenges ChallengeStore
	methods    authmethod.Store
	now        func() time.Time
}

// NewEngine validates cfg and wires the engine.
func NewEngine(cfg Config, challenges ChallengeStore, methods authmethod.Store, now func() time.Time) (*Engine, error) {
	if cfg.RPID == "" || len(cfg.Origins) == 0 {
		return nil, errors.New("passkey: RPID and at least one origin are required")
	}
	if cfg.ChallengeTTL <= 0 {
		return nil, errors.New("passkey: ChallengeTTL must be > 0")
	}
	if challenges == nil || methods == nil {
		return nil, errors.New("passkey: challenge store and method store are required")
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{config: cfg, challenges: challenges, methods: methods, now: now}, nil
}

// BeginAuthentication issues an AUTHENTICATION challenge.
func (e *Engine) BeginAuthentication(ctx context.Context) (Options, error) {
	c, err := e.issue(ctx, ChallengeAuthentication, "", "")
	if err != nil {
		return Options{}, err
	}
	return e.options(c), nil
}

// CompleteAuthentication verifies an assertion against the stored credential.
//
// The challenge is consumed before the signature is checked, so a failed
// attempt cannot be retried with the same challenge.
func (e *Engine) CompleteAuthentication(ctx context.Context, a Assertion) (Result, error) {
	if a.CredentialID == "" {
		return Result{State: StateFailed}, autherr.Validation("credential id is required")
	}
	m, err := e.methods.FindByCredentialID(ctx, a.CredentialID)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return Result{State: StateFailed}, fmt.Errorf("%w: %s", autherr.ErrCredentialNotFound, a.CredentialID)
		}
		return Result{State: StateFailed}, err
	}
	pk, ok := m.Metadata.(authmethod.Passkey)
	if !ok {
		return Result{State: StateFailed}, autherr.ErrCredentialNotFound
	}
	if a.UserID != "" && a.UserID != m.UserID {
		return Result{State: StateFailed}, fmt.Errorf("%w: credential owner mismatch", autherr.ErrInvalidCredential)
	}

	cd, err := parseClientData(a.ClientDataJSON, clientDataTypeGet, e.config.Origins)
	if err != nil {
		return Result{State: StateFailed}, err
	}
	now := e.now()
	ch, err := e.challenges.Consume(ctx, cd.Challenge, ChallengeAuthentication, now)
	if err != nil {
		return Result{State: StateOf(err)}, err
	}

	ad, err := parseAuthenticatorData(a.AuthenticatorData)
	if err != nil {
		return Result{State: StateFailed}, err
	}
	if err := checkRPID(ad, e.config.RPID); err != nil {
		return Result{State: StateFailed}, err
	}
	if e.config.UserVerification == "required" && !ad.has(flagUserVerified) {
		return Result{State: StateFailed}, fmt.Errorf("%w: user verification required", autherr.ErrInvalidCredential)
	}
	if err := verifySignature(pk.PublicKey, a.AuthenticatorData, a.ClientDataJSON, a.Signature); err != nil {
		return Result{State: StateFailed}, err
	}
	if err := signCountAdvanced(pk.SignCount, ad.SignCount); err != nil {
		return Result{State: StateFailed}, err
	}

	updated, err := e.methods.UpdateIf(ctx, m.ID,
		func(cur authmethod.Method) error {
			p, ok := cur.Metadata.(authmethod.Passkey)
			if !ok {
				return autherr.ErrCredentialNotFound
			}
			return signCountAdvanced(p.SignCount, ad.SignCount)
		},
		func(cur authmethod.Method) authmethod.Method {
			p := cur.Metadata.(authmethod.Passkey)
			p.SignCount = ad.SignCount
			p.BackupState = ad.has(flagBackupState)
			cur.Metadata = p
			cur.LastUsedAt = now
			return cur
		},
	)
	if err != nil {
		return Result{State: StateFailed}, err
	}
	return Result{Method: updated, UserID: updated.UserID, Challenge: ch, State: StateVerified}, nil
}

// BeginRegistration issues a REGISTRATION challenge bound to userID.
func (e *Engine) BeginRegistration(ctx context.Context, userID, userName string) (Options, error) {
	if userID == "" {
		return Options{}, autherr.Validation("user id is required")
	}
	c, err := e.issue(ctx, ChallengeRegistration, userID, userName)
	if err != nil {
		return Options{}, err
	}
	opts := e.options(c)
	existing, err := e.methods.ListByUser(ctx, userID)
	if err != nil {
		return Options{}, err
	}
	for _, m := range existing {
		if pk, ok := m.Metadata.(authmethod.Passkey); ok {
			opts.ExcludeCredentials = append(opts.ExcludeCredentials, pk.CredentialID)
		}
	}
	return opts, nil
}

// CompleteRegistration verifies an attestation and stores the new credential
// for the user the challenge was issued to.
func (e *Engine) CompleteRegistration(ctx context.Context, a Attestation) (authmethod.Method, error) {
	cd, err := parseClientData(a.ClientDataJSON, clientDataTypeCreate, e.config.Origins)
	if err != nil {
		return authmethod.Method{}, err
	}
	now := e.now()
	ch, err := e.challenges.Consume(ctx, cd.Challenge, ChallengeRegistration, now)
	if err != nil {
		return authmethod.Method{}, err
	}

	obj, err := parseAttestationObject(a.AttestationObject)
	if err != nil {
		return authmethod.Method{}, err
	}
	if !e.formatAccepted(obj.Format) {
		return authmethod.Method{}, fmt.Errorf("%w: attestation format %q", autherr.ErrInvalidCredential, obj.Format)
	}
	ad, err := parseAuthenticatorData(obj.AuthData)
	if err != nil {
		return authmethod.Method{}, err
	}
	if err := checkRPID(ad, e.config.RPID); err != nil {
		return authmethod.Method{}, err
	}
	if !ad.has(flagAttestedCredData) || len(ad.CredentialID) == 0 {
		return authmethod.Method{}, fmt.Errorf("%w: no attested credential data", autherr.ErrInvalidCredential)
	}

	credID := b64url.EncodeToString(ad.CredentialID)
	if _, err := e.methods.FindByCredentialID(ctx, credID); err == nil {
		return authmethod.Method{}, autherr.Validation("credential already registered")
	} else if !errors.Is(err, autherr.ErrNotFound) {
		return authmethod.Method{}, err
	}

	m := authmethod.New(uuid.NewString(), ch.UserID, authmethod.Passkey{
		CredentialID:   credID,
		PublicKey:      ad.PublicKey,
		AAGUID:         formatAAGUID(ad.AAGUID),
		SignCount:      ad.SignCount,
		BackupEligible: ad.has(flagBackupEligible),
		BackupState:    ad.has(flagBackupState),
		Transports:     a.Transports,
	}, now)
	m.Name = a.Name
	m.Active = true
	m.Verified = true
	if err := e.methods.Create(ctx, m); err != nil {
		return authmethod.Method{}, err
	}
	return m, nil
}

func (e *Engine) issue(ctx context.Context, typ ChallengeType, userID, userName string) (Challenge, error) {
	buf := make([]byte, challengeBytes)
	if _, err := rand.Read(buf); err != nil {
		return Challenge{}, fmt.Errorf("challenge entropy: %w", err)
	}
	now := e.now()
	c := Challenge{
		Value:     b64url.EncodeToString(buf),
		Type:      typ,
		UserID:    userID,
		UserName:  userName,
		IssuedAt:  now,
		ExpiresAt: now.Add(e.config.ChallengeTTL),
	}
	if err := e.challenges.Put(ctx, c); err != nil {
		return Challenge{}, err
	}
	return c, nil
}

func (e *Engine) options(c Challenge) Options {
	return Options{
		Challenge:        c.Value,
		RPID:             e.config.RPID,
		RPName:           e.config.RPName,
		UserID:           c.UserID,
		UserName:         c.UserName,
		Timeout:          e.config.Timeout.Milliseconds(),
		UserVerification: e.config.UserVerification,
		ExpiresAt:        c.ExpiresAt,
	}
}

func (e *Engine) formatAccepted(format string) bool {
	for _, f := range e.config.AttestationFormats {
		if f == format {
			return true
		}
	}
	return false
}

// signCountAdvanced rejects a counter that did not move forward. Authenticators
// that never count report zero on both sides.
func signCountAdvanced(stored, presented uint32) error {
	if stored == 0 && presented == 0 {
		return nil
	}
	if presented <= stored {
		return fmt.Errorf("%w: sign count regressed (%d <= %d)", autherr.ErrInvalidCredential, presented, stored)
	}
	return nil
}
