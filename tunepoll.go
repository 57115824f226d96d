// Package tunepoll submits generation tasks to sunoapi.org and reports their
// progress with a single status vocabulary for every kind of task.
package tunepoll

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/igolaizola/tunepoll/pkg/poll"
	"github.com/igolaizola/tunepoll/pkg/registry"
	"github.com/igolaizola/tunepoll/pkg/sunoapi"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type Config struct {
	Key      string
	BaseURL  string
	Proxy    string
	Wait     time.Duration
	Interval time.Duration
	Debug    bool
}

// Generate submits a task and waits until it reaches a terminal state.
func Generate(ctx context.Context, cfg *Config, kind task.Kind, p *task.Params) (task.PollResult, error) {
	httpClient := &http.Client{
		Timeout: 2 * time.Minute,
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return task.PollResult{}, fmt.Errorf("invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	client := sunoapi.New(&sunoapi.Config{
		Key:     cfg.Key,
		BaseURL: cfg.BaseURL,
		Wait:    cfg.Wait,
		Debug:   cfg.Debug,
		Client:  httpClient,
	})
	f := poll.New(&poll.Config{
		Upstream: client,
		Registry: registry.NewMemory(),
		Debug:    cfg.Debug,
	})
	sub, err := f.Submit(ctx, kind, p)
	if err != nil {
		return task.PollResult{}, fmt.Errorf("couldn't submit %s task: %w", kind, err)
	}
	log.Println("task id:", sub.TaskID)
	res, err := f.Wait(ctx, kind, sub.TaskID, cfg.Interval)
	if err != nil {
		return res, fmt.Errorf("couldn't wait for task %s: %w", sub.TaskID, err)
	}
	return res, nil
}
