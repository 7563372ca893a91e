package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/goTrust/mfa"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceRepository is the Postgres [mfa.PreferenceStore].
type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) GetPreferences(ctx context.Context, userID string) (mfa.Preferences, error) {
	var rec preferenceModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return mfa.Preferences{}, nil
	}
	if err != nil {
		return mfa.Preferences{}, dbError("mfa preferences of "+userID, err)
	}
	return mfa.Preferences{Enforced: rec.Enforced, MinimumACR: rec.MinimumACR, UpdatedAt: rec.UpdatedAt}, nil
}

func (r *PreferenceRepository) SavePreferences(ctx context.Context, userID string, p mfa.Preferences) error {
	rec := preferenceModel{
		UserID:     userID,
		Enforced:   p.Enforced,
		MinimumACR: p.MinimumACR,
		UpdatedAt:  p.UpdatedAt.UTC(),
	}
	return dbError("mfa preferences of "+userID, r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"enforced":    rec.Enforced,
			"minimum_acr": rec.MinimumACR,
			"updated_at":  rec.UpdatedAt,
		}),
	}).Create(&rec).Error)
}

var _ mfa.PreferenceStore = (*PreferenceRepository)(nil)
