package setting

import (
	"context"
	"fmt"
	"strings"

	"github.com/igolaizola/tunepoll/pkg/cmd/service"
	"github.com/igolaizola/tunepoll/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Service string
	Account string
	Value   string
	Type    string

	// List prints the stored settings of the service with masked values.
	List bool
	// Delete removes the setting instead of writing it.
	Delete bool
}

// Run stores, deletes or lists the provider API keys.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Service != service.KeyService {
		return fmt.Errorf("setting: unknown service %q", cfg.Service)
	}
	if !cfg.List {
		if cfg.Account == "" {
			return fmt.Errorf("setting: account is empty")
		}
		if cfg.Type != "key" {
			return fmt.Errorf("setting: unknown type %q", cfg.Type)
		}
		if !cfg.Delete && cfg.Value == "" {
			return fmt.Errorf("setting: value is empty")
		}
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("setting: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("setting: couldn't start orm store: %w", err)
	}
	defer store.Close()

	switch {
	case cfg.List:
		vs, err := store.ListSettings(ctx, cfg.Service+"/")
		if err != nil {
			return fmt.Errorf("setting: %w", err)
		}
		for _, v := range vs {
			fmt.Printf("%s\t%s\n", v.ID, mask(v.Value))
		}
	case cfg.Delete:
		id := storage.SettingID(cfg.Service, cfg.Account, cfg.Type)
		if err := store.DeleteSetting(ctx, id); err != nil {
			return fmt.Errorf("setting: %w", err)
		}
	default:
		if err := store.NewKeyStore(cfg.Service, cfg.Account).SetKey(ctx, cfg.Value); err != nil {
			return fmt.Errorf("setting: %w", err)
		}
	}
	return nil
}

// mask hides all but the last 4 characters of a secret.
func mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
