package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository is the Postgres [session.Backend]. Expired rows are
// invisible to reads and are deleted lazily when a user's sessions are listed
// or revoked.
type SessionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSessionRepository creates a session repository. now may be nil.
func NewSessionRepository(db *gorm.DB, now func() time.Time) *SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &SessionRepository{db: db, now: now}
}

func (r *SessionRepository) Save(ctx context.Context, s session.Session) error {
	if s.SessionID == "" || s.UserID == "" {
		return autherr.Validation("session id and user id are required")
	}
	rec := toSessionModel(s)
	return dbError("session "+s.SessionID, r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(&rec).Error)
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (session.Session, error) {
	var rec sessionModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND expires_at > ?", sessionID, r.now().UTC()).
		Take(&rec).Error; err != nil {
		return session.Session{}, dbError("session "+sessionID, err)
	}
	return toSession(rec), nil
}

// Touch stamps LastAccessedAt on a live session and returns the updated row.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) (session.Session, error) {
	var rec sessionModel
	res := r.db.WithContext(ctx).
		Model(&rec).
		Clauses(clause.Returning{}).
		Where("session_id = ? AND expires_at > ?", sessionID, r.now().UTC()).
		Update("last_accessed_at", at.UTC())
	if res.Error != nil {
		return session.Session{}, dbError("session "+sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return session.Session{}, fmt.Errorf("session %s: %w", sessionID, autherr.ErrNotFound)
	}
	return toSession(rec), nil
}

// Delete is idempotent.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	return dbError("session "+sessionID, r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&sessionModel{}).Error)
}

// DeleteAllForUser removes every row of the user and reports how many were live.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	var live int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sessionModel{}).
			Where("user_id = ? AND expires_at > ?", userID, r.now().UTC()).
			Count(&live).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&sessionModel{}).Error
	})
	if err != nil {
		return 0, dbError("sessions of "+userID, err)
	}
	return int(live), nil
}

func (r *SessionRepository) ListForUser(ctx context.Context, userID string) ([]session.Session, error) {
	now := r.now().UTC()
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at <= ?", userID, now).
		Delete(&sessionModel{}).Error; err != nil {
		return nil, dbError("sessions of "+userID, err)
	}
	var rows []sessionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("issued_at DESC").
		Find(&rows).Error; err != nil {
		return nil, dbError("sessions of "+userID, err)
	}
	out := make([]session.Session, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toSession(rec))
	}
	return out, nil
}

var _ session.Backend = (*SessionRepository)(nil)
