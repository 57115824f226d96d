package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/igolaizola/tunepoll/pkg/cmd/service"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type Config struct {
	service.Config

	Kind   string
	Params task.Params

	// Wait polls the task until it finishes.
	Wait     bool
	Interval time.Duration
}

// Run submits a generation task and prints its id or its final state.
func Run(ctx context.Context, cfg *Config) error {
	kind, err := task.ParseKind(cfg.Kind)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	// Fail before opening any store
	if err := cfg.Params.Validate(kind); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	svc, err := service.Open(ctx, &cfg.Config)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer func() { _ = svc.Close() }()
	sub, err := svc.Facade.Submit(ctx, kind, &cfg.Params)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	log.Printf("submit: %s task %s submitted\n", kind, sub.TaskID)

	if !cfg.Wait {
		fmt.Println(sub.TaskID)
		return nil
	}
	res, err := svc.Facade.Wait(ctx, kind, sub.TaskID, cfg.Interval)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	js, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("submit: couldn't marshal result: %w", err)
	}
	fmt.Println(string(js))
	if res.State == task.Failed {
		return fmt.Errorf("submit: task %s failed: %s", sub.TaskID, res.Error.Message)
	}
	return nil
}
