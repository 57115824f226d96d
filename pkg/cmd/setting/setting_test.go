package setting

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/igolaizola/tunepoll/pkg/storage"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.New("sqlite", db, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		DBType:  "sqlite",
		DBConn:  db,
		Service: "sunoapi",
		Account: "main",
		Value:   "k1",
		Type:    "key",
	}
	if err := Run(ctx, cfg); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}
	got, err := store.NewKeyStore("sunoapi", "main").GetKey(ctx)
	if err != nil {
		t.Fatalf("GetKey() err = %v; want nil", err)
	}
	if got != "k1" {
		t.Fatalf("GetKey() = %q; want k1", got)
	}

	for _, bad := range []Config{
		{DBType: "sqlite", DBConn: db, Service: "suno", Account: "main", Value: "v", Type: "key"},
		{DBType: "sqlite", DBConn: db, Service: "sunoapi", Account: "main", Value: "v", Type: "cookie"},
		{DBType: "sqlite", DBConn: db, Service: "sunoapi", Value: "v", Type: "key"},
	} {
		bad := bad
		if err := Run(ctx, &bad); err == nil {
			t.Fatalf("Run(%+v) err = nil; want error", bad)
		}
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.New("sqlite", db, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	ks := store.NewKeyStore("sunoapi", "main")
	if err := ks.SetKey(ctx, "k1"); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{DBType: "sqlite", DBConn: db, Service: "sunoapi", Account: "main", Type: "key", Delete: true}
	if err := Run(ctx, cfg); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}
	if _, err := ks.GetKey(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetKey() err = %v; want ErrNotFound", err)
	}
	cfg = &Config{DBType: "sqlite", DBConn: db, Service: "sunoapi", List: true}
	if err := Run(ctx, cfg); err != nil {
		t.Fatalf("Run(list) err = %v; want nil", err)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"sk-123456", "*****3456"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Fatalf("mask(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
