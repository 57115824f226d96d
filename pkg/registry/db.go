package registry

import (
	"context"
	"errors"

	"github.com/igolaizola/tunepoll/pkg/storage"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type db struct {
	store *storage.Store
}

// NewDB returns a registry on top of the tasks table.
func NewDB(store *storage.Store) Registry {
	return &db{store: store}
}

func (d *db) Get(ctx context.Context, taskID string) (*task.Record, error) {
	v, err := d.store.GetTask(ctx, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v.Record()
}

func (d *db) Put(ctx context.Context, r *task.Record) error {
	v, err := storage.NewTask(r)
	if err != nil {
		return err
	}
	return d.store.SetTask(ctx, v)
}
