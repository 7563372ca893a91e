package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/MrEthical07/goTrust/autherr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config controls token lifetimes and the registered claims the Manager
// stamps and checks.
type Config struct {
	Issuer         string
	Audience       string
	SignupTTL      time.Duration
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	DeviceTrustTTL time.Duration
	Leeway         time.Duration
}

// DefaultConfig returns the standard lifetimes.
func DefaultConfig() Config {
	return Config{
		Issuer:         "gotrust",
		Audience:       "gotrust-api",
		SignupTTL:      15 * time.Minute,
		AccessTTL:      30 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		DeviceTrustTTL: 30 * 24 * time.Hour,
	}
}

// SessionRequest describes a completed login to mint tokens for.
type SessionRequest struct {
	UserID    string
	Email     string
	Methods   []string
	ACR       int
	DeviceID  string
	IP        string
	SessionID string
}

// Pair is an access/refresh token pair.
type Pair struct {
	Access           string
	Refresh          string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Manager seals and opens v4.local tokens.
//
// A Manager built without usable key material never issues or accepts a
// token: every call returns an error wrapping autherr.ErrServiceUnavailable.
type Manager struct {
	config Config
	key    paseto.V4SymmetricKey
	keyErr error
	now    func() time.Time
}

// NewManager reads the key from src once. Only configuration mistakes are
// returned as errors; a missing or unusable key yields a Manager that fails
// closed, and [Manager.Unavailable] reports why.
func NewManager(cfg Config, src KeySource, now func() time.Time) (*Manager, error) {
	if cfg.SignupTTL <= 0 || cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.DeviceTrustTTL <= 0 {
		return nil, errors.New("token: all TTLs must be > 0")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("token: AccessTTL must be shorter than RefreshTTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	if now == nil {
		now = time.Now
	}

	m := &Manager{config: cfg, now: now}
	if src == nil {
		m.keyErr = ErrKeyMissing
		return m, nil
	}
	material, err := src.TokenKey()
	if err != nil {
		m.keyErr = err
		return m, nil
	}
	derived, err := deriveKey(material)
	if err != nil {
		m.keyErr = err
		return m, nil
	}
	key, err := paseto.V4SymmetricKeyFromBytes(derived)
	if err != nil {
		m.keyErr = fmt.Errorf("token key: %w", err)
		return m, nil
	}
	m.key = key
	return m, nil
}

// Unavailable returns the reason the Manager cannot serve, or nil.
func (m *Manager) Unavailable() error {
	return m.keyErr
}

// IssueSignupToken mints a signup token for an email that has not finished
// registration. The subject is a fresh user id.
func (m *Manager) IssueSignupToken(email, name string) (string, error) {
	if email == "" {
		return "", autherr.Validation("email is required")
	}
	c := m.claims(PurposeSignup, uuid.NewString(), m.config.SignupTTL)
	c.Email = email
	c.Name = name
	c.ACR = "0"
	return m.seal(c)
}

// ValidateSignupToken opens a signup token.
func (m *Manager) ValidateSignupToken(tok string) (*Claims, error) {
	return m.open(tok, PurposeSignup)
}

// IssueSessionTokenPair mints an access and a refresh token bound to one
// session id. A session id is generated when req.SessionID is empty.
func (m *Manager) IssueSessionTokenPair(req SessionRequest) (Pair, error) {
	if req.UserID == "" {
		return Pair{}, autherr.Validation("user id is required")
	}
	sid := req.SessionID
	if sid == "" {
		sid = uuid.NewString()
	}

	access := m.claims(PurposeAccess, req.UserID, m.config.AccessTTL)
	access.Email = req.Email
	access.ACR = strconv.Itoa(req.ACR)
	access.AMR = EncodeAMR(req.Methods)
	access.SessionID = sid
	access.DeviceID = req.DeviceID

	refresh := m.claims(PurposeRefresh, req.UserID, m.config.RefreshTTL)
	refresh.Email = req.Email
	refresh.ACR = access.ACR
	refresh.AMR = access.AMR
	refresh.SessionID = sid
	refresh.DeviceID = req.DeviceID

	accessTok, err := m.seal(access)
	if err != nil {
		return Pair{}, err
	}
	refreshTok, err := m.seal(refresh)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		Access:           accessTok,
		Refresh:          refreshTok,
		SessionID:        sid,
		AccessExpiresAt:  access.ExpiresAt.Time,
		RefreshExpiresAt: refresh.ExpiresAt.Time,
	}, nil
}

// RefreshAccessToken mints a new access token from a refresh token. The
// refresh token itself is not rotated. Any failure other than expiry is
// reported as autherr.ErrInvalidToken.
func (m *Manager) RefreshAccessToken(refreshTok string) (string, *Claims, error) {
	rc, err := m.open(refreshTok, PurposeRefresh)
	if err != nil {
		switch {
		case errors.Is(err, autherr.ErrExpired), errors.Is(err, autherr.ErrServiceUnavailable):
			return "", nil, err
		default:
			return "", nil, fmt.Errorf("%w: refresh rejected", autherr.ErrInvalidToken)
		}
	}

	access := m.claims(PurposeAccess, rc.Subject, m.config.AccessTTL)
	access.Email = rc.Email
	access.ACR = rc.ACR
	access.AMR = rc.AMR
	access.SessionID = rc.SessionID
	access.DeviceID = rc.DeviceID
	tok, err := m.seal(access)
	if err != nil {
		return "", nil, err
	}
	return tok, access, nil
}

// ValidateAccessToken opens an access token. It performs no I/O.
func (m *Manager) ValidateAccessToken(tok string) (*Claims, error) {
	return m.open(tok, PurposeAccess)
}

// AddAuthenticationMethod re-mints an access token after a step-up: method is
// merged into amr and acr is recomputed as a full authentication.
func (m *Manager) AddAuthenticationMethod(accessTok, method string) (string, *Claims, error) {
	cur, err := m.open(accessTok, PurposeAccess)
	if err != nil {
		return "", nil, err
	}
	methods := append(cur.Methods(), method)

	next := m.claims(PurposeAccess, cur.Subject, m.config.AccessTTL)
	next.Email = cur.Email
	next.AMR = EncodeAMR(methods)
	next.ACR = strconv.Itoa(CalculateACR(methods, false))
	next.SessionID = cur.SessionID
	next.DeviceID = cur.DeviceID
	tok, err := m.seal(next)
	if err != nil {
		return "", nil, err
	}
	return tok, next, nil
}

// IssueDeviceTrustToken mints the payload of the device-trust cookie. ttl of
// zero uses the configured default.
func (m *Manager) IssueDeviceTrustToken(deviceID, userID string, ttl time.Duration) (string, error) {
	if deviceID == "" || userID == "" {
		return "", autherr.Validation("device and user are required")
	}
	if ttl <= 0 {
		ttl = m.config.DeviceTrustTTL
	}
	c := m.claims(PurposeDeviceTrust, userID, ttl)
	c.DeviceID = deviceID
	return m.seal(c)
}

// ValidateDeviceTrustToken opens a device-trust token.
func (m *Manager) ValidateDeviceTrustToken(tok string) (*Claims, error) {
	return m.open(tok, PurposeDeviceTrust)
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

func (m *Manager) claims(purpose Purpose, subject string, ttl time.Duration) *Claims {
	now := m.now()
	c := &Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if m.config.Audience != "" {
		c.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return c
}

func (m *Manager) seal(c *Claims) (string, error) {
	if m.keyErr != nil {
		return "", autherr.Unavailable(m.keyErr)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	tok, err := paseto.NewTokenFromClaimsJSON(payload, nil)
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	return tok.V4Encrypt(m.key, nil), nil
}

func (m *Manager) open(raw string, want Purpose) (*Claims, error) {
	if m.keyErr != nil {
		return nil, autherr.Unavailable(m.keyErr)
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", autherr.ErrMalformed)
	}

	parser := paseto.NewParserWithoutExpiryCheck()
	tok, err := parser.ParseV4Local(m.key, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", autherr.ErrMalformed, err)
	}
	var c Claims
	if err := json.Unmarshal(tok.ClaimsJSON(), &c); err != nil {
		return nil, fmt.Errorf("%w: claims: %v", autherr.ErrMalformed, err)
	}

	if err := m.validator().Validate(&c); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", autherr.ErrExpired)
		}
		return nil, fmt.Errorf("%w: %v", autherr.ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", autherr.ErrInvalidToken)
	}
	if c.Purpose != want {
		return nil, fmt.Errorf("%w: got %q, want %q", autherr.ErrInvalidPurpose, c.Purpose, want)
	}
	return &c, nil
}

func (m *Manager) validator() *jwt.Validator {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.config.Audience))
	}
	return jwt.NewValidator(opts...)
}
