package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/authmethod"
	"github.com/MrEthical07/goTrust/device"
	"github.com/MrEthical07/goTrust/session"
)

type totpJSON struct {
	SecretKey       string `json:"secretKey"`
	Digits          int    `json:"digits"`
	Period          int    `json:"period"`
	LastUsedCounter int64  `json:"lastUsedCounter,omitempty"`
}

type smsJSON struct {
	PhoneNumber  string    `json:"phoneNumber"`
	CountryCode  string    `json:"countryCode,omitempty"`
	DailyCount   int       `json:"dailyCount"`
	DailyResetAt time.Time `json:"dailyResetAt"`
}

type emailJSON struct {
	Email        string    `json:"email"`
	DailyCount   int       `json:"dailyCount"`
	DailyResetAt time.Time `json:"dailyResetAt"`
}

type passkeyJSON struct {
	CredentialID   string   `json:"credentialId"`
	PublicKey      []byte   `json:"publicKey"`
	AAGUID         string   `json:"aaguid,omitempty"`
	SignCount      uint32   `json:"signCount"`
	BackupEligible bool     `json:"backupEligible"`
	BackupState    bool     `json:"backupState"`
	Transports     []string `json:"transports,omitempty"`
}

type oauthJSON struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
	Email    string `json:"email,omitempty"`
}

func encodeMetadata(meta authmethod.Metadata) (string, error) {
	var v any
	switch m := meta.(type) {
	case authmethod.Totp:
		v = totpJSON(m)
	case authmethod.SmsOtp:
		v = smsJSON(m)
	case authmethod.EmailOtp:
		v = emailJSON(m)
	case authmethod.Passkey:
		v = passkeyJSON(m)
	case authmethod.OAuth:
		v = oauthJSON(m)
	default:
		return "", fmt.Errorf("unsupported method metadata %T", meta)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeMetadata(kind authmethod.Kind, raw string) (authmethod.Metadata, error) {
	data := []byte(raw)
	switch {
	case kind == authmethod.KindTOTP:
		var v totpJSON
		err := json.Unmarshal(data, &v)
		return authmethod.Totp(v), err
	case kind == authmethod.KindSMSOTP:
		var v smsJSON
		err := json.Unmarshal(data, &v)
		return authmethod.SmsOtp(v), err
	case kind == authmethod.KindEmailOTP:
		var v emailJSON
		err := json.Unmarshal(data, &v)
		return authmethod.EmailOtp(v), err
	case kind == authmethod.KindPasskey:
		var v passkeyJSON
		err := json.Unmarshal(data, &v)
		return authmethod.Passkey(v), err
	case kind.IsOAuth():
		var v oauthJSON
		err := json.Unmarshal(data, &v)
		return authmethod.OAuth(v), err
	default:
		return nil, fmt.Errorf("unknown method kind %q", kind)
	}
}

func toMethodModel(m authmethod.Method) (methodModel, error) {
	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return methodModel{}, err
	}
	rec := methodModel{
		MethodID:   m.ID,
		UserID:     m.UserID,
		Kind:       string(m.Kind),
		Name:       m.Name,
		IsActive:   m.Active,
		IsVerified: m.Verified,
		Metadata:   meta,
		CreatedAt:  m.CreatedAt.UTC(),
		LastUsedAt: nullableTime(m.LastUsedAt),
	}
	if pk, ok := m.Metadata.(authmethod.Passkey); ok {
		rec.CredentialID = nullableString(pk.CredentialID)
	}
	if target, ok := m.Target(); ok {
		rec.Target = nullableString(target)
	}
	return rec, nil
}

func toMethod(rec methodModel) (authmethod.Method, error) {
	kind := authmethod.Kind(rec.Kind)
	meta, err := decodeMetadata(kind, rec.Metadata)
	if err != nil {
		return authmethod.Method{}, fmt.Errorf("method %s metadata: %w", rec.MethodID, err)
	}
	return authmethod.Method{
		ID:         rec.MethodID,
		UserID:     rec.UserID,
		Kind:       kind,
		Name:       rec.Name,
		Active:     rec.IsActive,
		Verified:   rec.IsVerified,
		Metadata:   meta,
		CreatedAt:  rec.CreatedAt,
		LastUsedAt: derefTime(rec.LastUsedAt),
	}, nil
}

func toDeviceModel(d device.Identity) (deviceModel, error) {
	signals, err := json.Marshal(d.Signals)
	if err != nil {
		return deviceModel{}, err
	}
	return deviceModel{
		DeviceID:            d.DeviceID,
		UserID:              d.UserID,
		VisitorID:           d.VisitorID,
		Signals:             string(signals),
		TrustScore:          d.TrustScore,
		TrustLevel:          string(d.TrustLevel),
		IsTrusted:           d.Trusted,
		TrustExpiresAt:      nullableTime(d.TrustExpiresAt),
		BaselineFingerprint: d.BaselineFingerprint,
		FirstSeen:           d.FirstSeen.UTC(),
		LastSeen:            d.LastSeen.UTC(),
	}, nil
}

func toDevice(rec deviceModel) (device.Identity, error) {
	var signals device.Signals
	if err := json.Unmarshal([]byte(rec.Signals), &signals); err != nil {
		return device.Identity{}, fmt.Errorf("device %s signals: %w", rec.DeviceID, err)
	}
	return device.Identity{
		DeviceID:            rec.DeviceID,
		UserID:              rec.UserID,
		VisitorID:           rec.VisitorID,
		Signals:             signals,
		TrustScore:          rec.TrustScore,
		TrustLevel:          device.Level(rec.TrustLevel),
		Trusted:             rec.IsTrusted,
		TrustExpiresAt:      derefTime(rec.TrustExpiresAt),
		BaselineFingerprint: rec.BaselineFingerprint,
		FirstSeen:           rec.FirstSeen,
		LastSeen:            rec.LastSeen,
	}, nil
}

func toSessionModel(s session.Session) sessionModel {
	return sessionModel{
		SessionID:      s.SessionID,
		UserID:         s.UserID,
		Email:          s.Email,
		DeviceID:       s.DeviceID,
		IPAddress:      s.IPAddress,
		ACR:            int16(s.ACR),
		IssuedAt:       s.IssuedAt.UTC(),
		ExpiresAt:      s.ExpiresAt.UTC(),
		LastAccessedAt: nullableTime(s.LastAccessedAt),
	}
}

func toSession(rec sessionModel) session.Session {
	return session.Session{
		SessionID:      rec.SessionID,
		UserID:         rec.UserID,
		Email:          rec.Email,
		DeviceID:       rec.DeviceID,
		IPAddress:      rec.IPAddress,
		ACR:            uint8(rec.ACR),
		IssuedAt:       rec.IssuedAt,
		ExpiresAt:      rec.ExpiresAt,
		LastAccessedAt: derefTime(rec.LastAccessedAt),
	}
}
