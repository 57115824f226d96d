package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// File maps the stored name of an exported file (taskID/file) to the
// reference its file store needs to fetch it back.
type File struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Ref       string `gorm:"not null;default:''"`
}

func (s *Store) GetFileRef(ctx context.Context, id string) (string, error) {
	var v File
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: couldn't get file %s: %w", id, err)
	}
	return v.Ref, nil
}

// SetFileRef creates or replaces the reference of a file.
func (s *Store) SetFileRef(ctx context.Context, id, ref string) error {
	now := time.Now().UTC()
	v := &File{ID: id, Ref: ref, CreatedAt: now, UpdatedAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ref", "updated_at"}),
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("storage: couldn't set file %s: %w", id, err)
	}
	return nil
}

// ListFiles returns the files whose name starts with prefix, usually a
// task id followed by a slash.
func (s *Store) ListFiles(ctx context.Context, prefix string) ([]*File, error) {
	vs := []*File{}
	if err := s.db.WithContext(ctx).Where("id LIKE ?", prefix+"%").Order("id").Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: couldn't list files %s: %w", prefix, err)
	}
	return vs, nil
}
