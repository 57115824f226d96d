package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/igolaizola/tunepoll/pkg/storage"
	"github.com/igolaizola/tunepoll/pkg/task"
)

func testRegistries(t *testing.T) map[string]Registry {
	t.Helper()
	ctx := context.Background()
	store, err := storage.New("sqlite", filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	mem, err := New(ctx, "memory", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	dbReg, err := New(ctx, "db", "", store)
	if err != nil {
		t.Fatal(err)
	}
	srv := miniredis.RunT(t)
	redisReg, err := New(ctx, "redis", srv.Addr(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = redisReg.(io.Closer).Close() })
	return map[string]Registry{"memory": mem, "db": dbReg, "redis": redisReg}
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	for name, reg := range testRegistries(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := reg.Get(ctx, "t1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get() err = %v; want ErrNotFound", err)
			}
			in := &task.Record{
				TaskID:    "t1",
				Kind:      task.Mp4,
				Params:    &task.Params{TaskID: "m", AudioID: "a"},
				Last:      task.PollResult{TaskID: "t1", State: task.Pending},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := reg.Put(ctx, in); err != nil {
				t.Fatalf("Put() err = %v; want nil", err)
			}
			in.Last = task.PollResult{
				TaskID: "t1",
				State:  task.Succeeded,
				Result: &task.VideoFile{VideoURL: "https://x/y.mp4", OriginalAudioID: "m1"},
			}
			if err := reg.Put(ctx, in); err != nil {
				t.Fatalf("Put() err = %v; want nil", err)
			}
			got, err := reg.Get(ctx, "t1")
			if err != nil {
				t.Fatalf("Get() err = %v; want nil", err)
			}
			if !reflect.DeepEqual(got.Last, in.Last) {
				t.Fatalf("Get().Last = %+v; want %+v", got.Last, in.Last)
			}
			if got.Kind != task.Mp4 {
				t.Fatalf("Get().Kind = %s; want %s", got.Kind, task.Mp4)
			}
		})
	}
}

func TestMemoryConcurrent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i%5)
			_ = reg.Put(ctx, &task.Record{TaskID: id, Kind: task.Music})
			_, _ = reg.Get(ctx, id)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 5; i++ {
		if _, err := reg.Get(ctx, fmt.Sprintf("t%d", i)); err != nil {
			t.Fatalf("Get(t%d) err = %v; want nil", i, err)
		}
	}
}

func TestUnknownType(t *testing.T) {
	if _, err := New(context.Background(), "etcd", "", nil); err == nil {
		t.Fatalf("New(etcd) err = nil; want error")
	}
	if _, err := New(context.Background(), "db", "", nil); err == nil {
		t.Fatalf("New(db, nil store) err = nil; want error")
	}
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	reg, err := New(ctx, "redis", "redis://"+srv.Addr()+"/0", nil)
	if err != nil {
		t.Fatalf("New(redis) err = %v; want nil", err)
	}
	if err := reg.Put(ctx, &task.Record{TaskID: "t1", Kind: task.Wav}); err != nil {
		t.Fatalf("Put() err = %v; want nil", err)
	}
	if got := srv.TTL(redisPrefix + "t1"); got != redisTTL {
		t.Fatalf("TTL() = %s; want %s", got, redisTTL)
	}

	// Undecodable values are reported, not hidden
	if err := srv.Set(redisPrefix+"t2", "{"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get(ctx, "t2"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(t2) err = %v; want decode error", err)
	}

	c, ok := reg.(io.Closer)
	if !ok {
		t.Fatalf("redis registry is not an io.Closer")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() err = %v; want nil", err)
	}
	if _, err := reg.Get(ctx, "t1"); err == nil {
		t.Fatalf("Get() after Close err = nil; want error")
	}

	addr := srv.Addr()
	srv.Close()
	if _, err := New(ctx, "redis", addr, nil); err == nil {
		t.Fatalf("New(redis) with server down err = nil; want error")
	}
}
