package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/igolaizola/tunepoll/pkg/cmd/service"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type Config struct {
	service.Config

	Kind   string
	TaskID string

	Wait     bool
	Interval time.Duration
}

// Run polls a task once, or until it finishes when Wait is set, and prints
// the result.
func Run(ctx context.Context, cfg *Config) error {
	kind, err := task.ParseKind(cfg.Kind)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if cfg.TaskID == "" {
		return fmt.Errorf("status: task id is empty")
	}

	svc, err := service.Open(ctx, &cfg.Config)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer func() { _ = svc.Close() }()

	var res task.PollResult
	if cfg.Wait {
		res, err = svc.Facade.Wait(ctx, kind, cfg.TaskID, cfg.Interval)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
	} else {
		res = svc.Facade.Poll(ctx, kind, cfg.TaskID)
	}
	js, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("status: couldn't marshal result: %w", err)
	}
	fmt.Println(string(js))
	return nil
}
