package postgres

import (
	"context"

	"github.com/MrEthical07/goTrust/autherr"
	"github.com/MrEthical07/goTrust/device"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository is the Postgres [device.Store].
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) GetDevice(ctx context.Context, deviceID string) (device.Identity, error) {
	var rec deviceModel
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Take(&rec).Error; err != nil {
		return device.Identity{}, dbError("device "+deviceID, err)
	}
	return toDevice(rec)
}

func (r *DeviceRepository) FindByVisitorID(ctx context.Context, visitorID string) (device.Identity, error) {
	var rec deviceModel
	if err := r.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		Order("last_seen DESC").
		Take(&rec).Error; err != nil {
		return device.Identity{}, dbError("visitor "+visitorID, err)
	}
	return toDevice(rec)
}

func (r *DeviceRepository) ListDevices(ctx context.Context, userID string) ([]device.Identity, error) {
	var rows []deviceModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_seen DESC").Find(&rows).Error; err != nil {
		return nil, dbError("devices of "+userID, err)
	}
	out := make([]device.Identity, 0, len(rows))
	for _, rec := range rows {
		d, err := toDevice(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SaveDevice upserts the whole record. Concurrent saves are last-writer-wins.
func (r *DeviceRepository) SaveDevice(ctx context.Context, d device.Identity) error {
	if d.DeviceID == "" {
		return autherr.Validation("device id is required")
	}
	rec, err := toDeviceModel(d)
	if err != nil {
		return err
	}
	return dbError("device "+d.DeviceID, r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		UpdateAll: true,
	}).Create(&rec).Error)
}

var _ device.Store = (*DeviceRepository)(nil)
