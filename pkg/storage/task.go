package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/igolaizola/tunepoll/pkg/task"
	"gorm.io/gorm"
)

type Task struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Kind   string `gorm:"not null;default:'';index"`
	State  string `gorm:"not null;default:'';index"`
	Params string `gorm:"not null;default:''"`
	Result string `gorm:"not null;default:''"`

	ErrorCode    string `gorm:"not null;default:''"`
	ErrorMessage string `gorm:"not null;default:''"`
}

func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	var v Task
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get task %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) SetTask(ctx context.Context, v *Task) error {
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set task %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&Task{ID: id}, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: failed to delete task %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, page, size int, orderBy string, filter ...Filter) ([]*Task, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	vs := []*Task{}

	q := s.db.WithContext(ctx).Offset(offset).Limit(size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list tasks: %w", err)
	}
	return vs, nil
}

// NewTask converts a task record to its table row.
func NewTask(r *task.Record) (*Task, error) {
	v := &Task{
		ID:        r.TaskID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Kind:      string(r.Kind),
		State:     string(r.Last.State),
	}
	if r.Params != nil {
		b, err := json.Marshal(r.Params)
		if err != nil {
			return nil, fmt.Errorf("storage: couldn't marshal params of %s: %w", r.TaskID, err)
		}
		v.Params = string(b)
	}
	if r.Last.Result != nil {
		b, err := json.Marshal(r.Last.Result)
		if err != nil {
			return nil, fmt.Errorf("storage: couldn't marshal result of %s: %w", r.TaskID, err)
		}
		v.Result = string(b)
	}
	if r.Last.Error != nil {
		v.ErrorCode = r.Last.Error.Code
		v.ErrorMessage = r.Last.Error.Message
	}
	return v, nil
}

// Record converts the row back to a task record.
func (v *Task) Record() (*task.Record, error) {
	kind := task.Kind(v.Kind)
	r := &task.Record{
		TaskID:    v.ID,
		Kind:      kind,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
		Last: task.PollResult{
			TaskID: v.ID,
			State:  task.State(v.State),
		},
	}
	if v.Params != "" {
		var p task.Params
		if err := json.Unmarshal([]byte(v.Params), &p); err != nil {
			return nil, fmt.Errorf("storage: couldn't unmarshal params of %s: %w", v.ID, err)
		}
		r.Params = &p
	}
	result, err := task.DecodeResult(kind, []byte(v.Result))
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", v.ID, err)
	}
	r.Last.Result = result
	if r.Last.State == task.Failed {
		r.Last.Error = &task.ErrorDetail{
			Code:    v.ErrorCode,
			Message: v.ErrorMessage,
		}
	}
	return r, nil
}
