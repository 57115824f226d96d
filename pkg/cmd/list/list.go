package list

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/igolaizola/tunepoll/pkg/storage"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Kind   string
	State  string
	Page   int
	Size   int
	Format string
	// Delete removes the listed tasks after printing them.
	Delete bool
}

type row struct {
	TaskID       string `csv:"task_id" json:"taskId"`
	Kind         string `csv:"kind" json:"kind"`
	State        string `csv:"state" json:"state"`
	ErrorCode    string `csv:"error_code" json:"errorCode,omitempty"`
	ErrorMessage string `csv:"error_message" json:"errorMessage,omitempty"`
	UpdatedAt    string `csv:"updated_at" json:"updatedAt"`
}

// Run prints the tasks stored in the database.
func Run(ctx context.Context, cfg *Config) error {
	return run(ctx, cfg, os.Stdout)
}

func run(ctx context.Context, cfg *Config, w io.Writer) error {
	var filters []storage.Filter
	if cfg.Kind != "" {
		kind, err := task.ParseKind(cfg.Kind)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		filters = append(filters, storage.Where("kind = ?", string(kind)))
	}
	if cfg.State != "" {
		state := task.State(strings.ToUpper(cfg.State))
		if !state.Valid() {
			return fmt.Errorf("list: unknown state %q", cfg.State)
		}
		filters = append(filters, storage.Where("state = ?", string(state)))
	}
	size := cfg.Size
	if size <= 0 {
		size = 100
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("list: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("list: couldn't start orm store: %w", err)
	}
	defer store.Close()
	tasks, err := store.ListTasks(ctx, cfg.Page, size, "updated_at desc", filters...)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	rows := []*row{}
	for _, t := range tasks {
		rows = append(rows, &row{
			TaskID:       t.ID,
			Kind:         t.Kind,
			State:        t.State,
			ErrorCode:    t.ErrorCode,
			ErrorMessage: t.ErrorMessage,
			UpdatedAt:    t.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	var b []byte
	switch cfg.Format {
	case "", "csv":
		b, err = gocsv.MarshalBytes(&rows)
	case "json":
		b, err = json.MarshalIndent(rows, "", "  ")
		b = append(b, '\n')
	default:
		return fmt.Errorf("list: unsupported format %q", cfg.Format)
	}
	if err != nil {
		return fmt.Errorf("list: couldn't marshal tasks: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("list: couldn't write tasks: %w", err)
	}

	if !cfg.Delete {
		return nil
	}
	for _, t := range tasks {
		if err := store.DeleteTask(ctx, t.ID); err != nil {
			return fmt.Errorf("list: %w", err)
		}
	}
	log.Printf("list: deleted %d tasks\n", len(tasks))
	return nil
}
