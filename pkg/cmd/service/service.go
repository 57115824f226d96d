// Package service wires the stores, the upstream client and the polling
// facade shared by every command.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/igolaizola/tunepoll/pkg/poll"
	"github.com/igolaizola/tunepoll/pkg/registry"
	"github.com/igolaizola/tunepoll/pkg/storage"
	"github.com/igolaizola/tunepoll/pkg/sunoapi"
)

// KeyService is the settings service name of the provider API keys.
const KeyService = "sunoapi"

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	RegistryType string
	RegistryConn string

	Key     string
	Account string
	BaseURL string
	Model   string
	Wait    time.Duration

	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
}

type Service struct {
	Facade   *poll.Facade
	Registry registry.Registry
	// Store is nil when no database is configured.
	Store *storage.Store
}

// Open starts the configured stores and returns the facade.
func Open(ctx context.Context, cfg *Config) (*Service, error) {
	var store *storage.Store
	if cfg.DBType != "" {
		var err error
		store, err = storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("service: couldn't create orm store: %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return nil, fmt.Errorf("service: couldn't start orm store: %w", err)
		}
	}

	svc, err := open(ctx, cfg, store)
	if err != nil && store != nil {
		_ = store.Close()
	}
	return svc, err
}

func open(ctx context.Context, cfg *Config, store *storage.Store) (*Service, error) {
	key := cfg.Key
	if key == "" && store != nil {
		account := cfg.Account
		if account == "" {
			account = "default"
		}
		v, err := store.NewKeyStore(KeyService, account).GetKey(ctx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("service: couldn't get api key: %w", err)
		}
		key = v
	}
	if key == "" {
		return nil, fmt.Errorf("service: api key is empty")
	}

	reg, err := registry.New(ctx, cfg.RegistryType, cfg.RegistryConn, store)
	if err != nil {
		return nil, fmt.Errorf("service: couldn't create registry: %w", err)
	}

	client := sunoapi.New(&sunoapi.Config{
		Key:     key,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Wait:    cfg.Wait,
		Debug:   cfg.Debug,
	})
	f := poll.New(&poll.Config{
		Upstream: client,
		Registry: reg,
		Attempts: cfg.Attempts,
		Backoff:  cfg.Backoff,
		Timeout:  cfg.Timeout,
		Debug:    cfg.Debug,
	})
	return &Service{
		Facade:   f,
		Registry: reg,
		Store:    store,
	}, nil
}

// Close releases the registry and database connections, if any.
func (s *Service) Close() error {
	var errs []error
	if c, ok := s.Registry.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("service: couldn't close registry: %w", err))
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("service: couldn't close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
