package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting is a named value. Ids are service/account/type.
type Setting struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Value     string
}

func SettingID(service, account, typ string) string {
	return fmt.Sprintf("%s/%s/%s", service, account, typ)
}

func (s *Store) GetSetting(ctx context.Context, id string) (*Setting, error) {
	var v Setting
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: couldn't get setting %s: %w", id, err)
	}
	return &v, nil
}

// SetSetting creates or replaces the value of a setting.
func (s *Store) SetSetting(ctx context.Context, id, value string) error {
	now := time.Now().UTC()
	v := &Setting{ID: id, Value: value, CreatedAt: now, UpdatedAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("storage: couldn't set setting %s: %w", id, err)
	}
	return nil
}

// DeleteSetting removes a setting, missing ones are not an error.
func (s *Store) DeleteSetting(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Setting{}).Error; err != nil {
		return fmt.Errorf("storage: couldn't delete setting %s: %w", id, err)
	}
	return nil
}

// ListSettings returns the settings whose id starts with prefix.
func (s *Store) ListSettings(ctx context.Context, prefix string) ([]*Setting, error) {
	vs := []*Setting{}
	if err := s.db.WithContext(ctx).Where("id LIKE ?", prefix+"%").Order("id").Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: couldn't list settings %s: %w", prefix, err)
	}
	return vs, nil
}
