package postgres

import "time"

type methodModel struct {
	MethodID     string     `gorm:"column:method_id;primaryKey"`
	UserID       string     `gorm:"column:user_id"`
	Kind         string     `gorm:"column:kind"`
	Name         string     `gorm:"column:name"`
	IsActive     bool       `gorm:"column:is_active"`
	IsVerified   bool       `gorm:"column:is_verified"`
	Metadata     string     `gorm:"column:metadata;type:jsonb"`
	CredentialID *string    `gorm:"column:credential_id"`
	Target       *string    `gorm:"column:target"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	LastUsedAt   *time.Time `gorm:"column:last_used_at"`
}

func (methodModel) TableName() string { return "auth_methods" }

type deviceModel struct {
	DeviceID            string     `gorm:"column:device_id;primaryKey"`
	UserID              string     `gorm:"column:user_id"`
	VisitorID           string     `gorm:"column:visitor_id"`
	Signals             string     `gorm:"column:signals;type:jsonb"`
	TrustScore          int        `gorm:"column:trust_score"`
	TrustLevel          string     `gorm:"column:trust_level"`
	IsTrusted           bool       `gorm:"column:is_trusted"`
	TrustExpiresAt      *time.Time `gorm:"column:trust_expires_at"`
	BaselineFingerprint string     `gorm:"column:baseline_fingerprint"`
	FirstSeen           time.Time  `gorm:"column:first_seen"`
	LastSeen            time.Time  `gorm:"column:last_seen"`
}

func (deviceModel) TableName() string { return "devices" }

type preferenceModel struct {
	UserID     string    `gorm:"column:user_id;primaryKey"`
	Enforced   bool      `gorm:"column:enforced"`
	MinimumACR int       `gorm:"column:minimum_acr"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (preferenceModel) TableName() string { return "mfa_preferences" }

type sessionModel struct {
	SessionID      string     `gorm:"column:session_id;primaryKey"`
	UserID         string     `gorm:"column:user_id"`
	Email          string     `gorm:"column:email"`
	DeviceID       string     `gorm:"column:device_id"`
	IPAddress      string     `gorm:"column:ip_address"`
	ACR            int16      `gorm:"column:acr"`
	IssuedAt       time.Time  `gorm:"column:issued_at"`
	ExpiresAt      time.Time  `gorm:"column:expires_at"`
	LastAccessedAt *time.Time `gorm:"column:last_accessed_at"`
}

func (sessionModel) TableName() string { return "trust_sessions" }

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
