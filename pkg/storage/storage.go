// Package storage is the relational database of tunepoll: task records,
// settings such as API keys and references of exported files.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	dialector gorm.Dialector
	db        *gorm.DB
	debug     bool
}

// New prepares a store of the given type (sqlite, mysql or postgres). No
// connection is made until Start.
func New(dbType, dbConn string, debug bool) (*Store, error) {
	var d gorm.Dialector
	switch dbType {
	case "sqlite":
		d = sqlite.Open(dbConn)
	case "mysql":
		d = mysql.Open(dbConn)
	case "postgres":
		d = postgres.Open(dbConn)
	default:
		return nil, fmt.Errorf("storage: unknown db type %q", dbType)
	}
	return &Store{dialector: d, debug: debug}, nil
}

// Start opens the connection. It gives up when ctx is done even if the
// driver is still dialing.
func (s *Store) Start(ctx context.Context) error {
	level := logger.Silent
	if s.debug {
		level = logger.Warn
	}
	type result struct {
		db  *gorm.DB
		err error
	}
	done := make(chan result, 1)
	go func() {
		db, err := gorm.Open(s.dialector, &gorm.Config{
			Logger: logger.Default.LogMode(level),
		})
		done <- result{db, err}
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("storage: couldn't open database: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("storage: couldn't open database: %w", r.err)
		}
		s.db = r.db
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("storage: couldn't get sql db: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs the pending versioned migrations and updates the tables to
// the current models.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := runMigrations(db); err != nil {
		return err
	}
	if err := db.AutoMigrate(&Task{}, &Setting{}, &File{}); err != nil {
		return fmt.Errorf("storage: couldn't migrate tables: %w", err)
	}
	return nil
}

type Filter struct {
	Query interface{}
	Args  []interface{}
}

func Where(query interface{}, args ...interface{}) Filter {
	return Filter{
		Query: query,
		Args:  args,
	}
}
