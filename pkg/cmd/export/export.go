package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/igolaizola/tunepoll/pkg/cmd/service"
	"github.com/igolaizola/tunepoll/pkg/filestore"
	"github.com/igolaizola/tunepoll/pkg/sound"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type Config struct {
	service.Config

	FSType string
	FSConn string
	Proxy  string

	Kind     string
	TaskID   string
	Interval time.Duration
	Timeout  time.Duration
}

// Run waits for a task to finish and copies its files to the file store.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("export: started")
	defer log.Println("export: ended")

	kind, err := task.ParseKind(cfg.Kind)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if cfg.TaskID == "" {
		return fmt.Errorf("export: task id is empty")
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	svc, err := service.Open(ctx, &cfg.Config)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer func() { _ = svc.Close() }()
	fs, err := filestore.New(ctx, cfg.FSType, cfg.FSConn, cfg.Proxy, cfg.Debug, svc.Store)
	if err != nil {
		return fmt.Errorf("export: couldn't create file storage: %w", err)
	}

	httpClient := &http.Client{
		Timeout: 2 * time.Minute,
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("export: invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}

	res, err := svc.Facade.Wait(ctx, kind, cfg.TaskID, cfg.Interval)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if res.State == task.Failed {
		return fmt.Errorf("export: task %s failed: %s", cfg.TaskID, res.Error.Message)
	}
	names, err := exportResult(ctx, httpClient, fs, res, cfg.Debug)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(filestore.Name(cfg.TaskID, n))
	}
	return nil
}

type putter interface {
	Put(ctx context.Context, path, taskID, file string) error
	Stored(ctx context.Context, taskID string) (map[string]bool, error)
}

// exportResult downloads every file of the result and stores it together
// with the result itself. Files already stored by a previous export are
// skipped. Results without files, like lyrics, only store result.json.
func exportResult(ctx context.Context, client *http.Client, fs putter, res task.PollResult, debug bool) ([]string, error) {
	if res.Result == nil {
		return nil, fmt.Errorf("export: task %s has no result", res.TaskID)
	}
	urls := task.URLs(res.Result)
	stored, err := fs.Stored(ctx, res.TaskID)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	dir, err := os.MkdirTemp("", "tunepoll-export")
	if err != nil {
		return nil, fmt.Errorf("export: couldn't create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var names []string
	for name := range urls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if stored[name] {
			log.Printf("export: %s already stored\n", name)
			continue
		}
		path := filepath.Join(dir, name)
		if err := download(ctx, client, urls[name], path); err != nil {
			return nil, err
		}
		if filepath.Ext(name) == ".mp3" {
			info, err := sound.Probe(path)
			if err != nil {
				log.Printf("export: couldn't probe %s: %v\n", name, err)
			} else {
				log.Printf("export: %s duration %s\n", name, info.Duration.Round(time.Second))
			}
		}
		if err := fs.Put(ctx, path, res.TaskID, name); err != nil {
			return nil, fmt.Errorf("export: couldn't store %s: %w", name, err)
		}
		if debug {
			log.Printf("export: stored %s\n", name)
		}
	}

	js, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: couldn't marshal result: %w", err)
	}
	path := filepath.Join(dir, "result.json")
	if err := os.WriteFile(path, js, 0644); err != nil {
		return nil, fmt.Errorf("export: couldn't write result: %w", err)
	}
	if err := fs.Put(ctx, path, res.TaskID, "result.json"); err != nil {
		return nil, fmt.Errorf("export: couldn't store result: %w", err)
	}
	return append(names, "result.json"), nil
}

func download(ctx context.Context, client *http.Client, u, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("export: couldn't create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("export: couldn't download %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("export: couldn't download %s: status %d", u, resp.StatusCode)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: couldn't create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("export: couldn't write %s: %w", path, err)
	}
	return nil
}
