package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/igolaizola/tunepoll/pkg/storage"
	"github.com/igolaizola/tunepoll/pkg/task"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "test.db")
	cfg := &Config{DBType: "sqlite", DBConn: db}
	// Running twice must be a no-op the second time
	for i := 0; i < 2; i++ {
		if err := Run(ctx, cfg); err != nil {
			t.Fatalf("Run() #%d err = %v; want nil", i, err)
		}
	}

	store, err := storage.New("sqlite", db, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	v, err := storage.NewTask(&task.Record{TaskID: "t1", Kind: task.Music, Last: task.PollResult{TaskID: "t1", State: task.Pending}})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetTask(ctx, v); err != nil {
		t.Fatalf("SetTask() err = %v; want nil", err)
	}

	if err := Run(ctx, &Config{DBType: "oracle"}); err == nil {
		t.Fatalf("Run() err = nil; want unknown db type error")
	}
}
