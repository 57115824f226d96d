// Package registry keeps the last known state of submitted tasks.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/igolaizola/tunepoll/pkg/storage"
	"github.com/igolaizola/tunepoll/pkg/task"
)

var ErrNotFound = errors.New("registry: task not found")

// Registry stores task records keyed by task id. Put overwrites, the last
// write wins. Registries holding connections also implement io.Closer.
type Registry interface {
	Get(ctx context.Context, taskID string) (*task.Record, error)
	Put(ctx context.Context, r *task.Record) error
}

// New creates a registry of the given type. Type "db" uses the provided
// database store.
func New(ctx context.Context, typ, conn string, store *storage.Store) (Registry, error) {
	switch typ {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		r, err := NewRedis(ctx, conn)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "db":
		if store == nil {
			return nil, fmt.Errorf("registry: db registry needs a database store")
		}
		return NewDB(store), nil
	default:
		return nil, fmt.Errorf("registry: unknown registry type %q", typ)
	}
}
