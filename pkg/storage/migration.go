package storage

import (
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Migration keeps the version of the last applied migration.
type Migration struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int `gorm:"not null;default:0"`
}

// migrations are applied in order on databases created before them. Fresh
// databases start at the last version.
var migrations = []struct {
	name string
	run  func(db *gorm.DB) error
}{
	{"lowercase task kinds", func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&Task{}) {
			return nil
		}
		return db.Model(&Task{}).Where("kind <> LOWER(kind)").
			Update("kind", gorm.Expr("LOWER(kind)")).Error
	}},
}

func runMigrations(db *gorm.DB) error {
	last := len(migrations)
	if !db.Migrator().HasTable(&Migration{}) {
		fresh := !db.Migrator().HasTable(&Task{})
		if err := db.Migrator().CreateTable(&Migration{}); err != nil {
			return fmt.Errorf("storage: couldn't create migrations table: %w", err)
		}
		m := &Migration{ID: ulid.Make().String()}
		if fresh {
			m.Version = last
		}
		if err := db.Create(m).Error; err != nil {
			return fmt.Errorf("storage: couldn't save migration version: %w", err)
		}
	}

	var m Migration
	if err := db.First(&m).Error; err != nil {
		return fmt.Errorf("storage: couldn't get migration version: %w", err)
	}
	for m.Version < last {
		next := migrations[m.Version]
		log.Printf("storage: migration %d: %s\n", m.Version+1, next.name)
		if err := next.run(db); err != nil {
			return fmt.Errorf("storage: migration %d failed: %w", m.Version+1, err)
		}
		m.Version++
		if err := db.Save(&m).Error; err != nil {
			return fmt.Errorf("storage: couldn't save migration version: %w", err)
		}
	}
	return nil
}
