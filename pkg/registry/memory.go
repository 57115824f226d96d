package registry

import (
	"context"
	"sync"

	"github.com/igolaizola/tunepoll/pkg/task"
)

type memory struct {
	mu      sync.RWMutex
	records map[string]task.Record
}

// NewMemory returns a registry that lives in the process memory.
func NewMemory() Registry {
	return &memory{
		records: make(map[string]task.Record),
	}
}

func (m *memory) Get(ctx context.Context, taskID string) (*task.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *memory) Put(ctx context.Context, r *task.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.TaskID] = *r
	return nil
}
