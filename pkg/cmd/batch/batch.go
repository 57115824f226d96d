package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/igolaizola/tunepoll/pkg/cmd/service"
	"github.com/igolaizola/tunepoll/pkg/sunoapi"
	"github.com/igolaizola/tunepoll/pkg/task"
	"github.com/oklog/ulid/v2"
)

type Config struct {
	service.Config

	Input       string
	Output      string
	Kind        string
	Limit       int
	Concurrency int
}

// item is one line of the input file.
type item struct {
	Kind         string  `json:"kind" csv:"kind"`
	Prompt       string  `json:"prompt" csv:"prompt"`
	Style        string  `json:"style" csv:"style"`
	Title        string  `json:"title" csv:"title"`
	NegativeTags string  `json:"negativeTags" csv:"negative_tags"`
	CustomMode   bool    `json:"customMode" csv:"custom_mode"`
	Instrumental bool    `json:"instrumental" csv:"instrumental"`
	Model        string  `json:"model" csv:"model"`
	TaskID       string  `json:"taskId" csv:"task_id"`
	AudioID      string  `json:"audioId" csv:"audio_id"`
	ContinueAt   float64 `json:"continueAt" csv:"continue_at"`
}

func (i *item) params() *task.Params {
	p := &task.Params{
		Prompt:       i.Prompt,
		Style:        i.Style,
		Title:        i.Title,
		NegativeTags: i.NegativeTags,
		CustomMode:   i.CustomMode,
		Instrumental: i.Instrumental,
		Model:        i.Model,
		TaskID:       i.TaskID,
		AudioID:      i.AudioID,
	}
	if i.ContinueAt > 0 {
		v := i.ContinueAt
		p.ContinueAt = &v
	}
	return p
}

// row is one line of the output report.
type row struct {
	Batch  string `json:"batch" csv:"batch"`
	Line   int    `json:"line" csv:"line"`
	Kind   string `json:"kind" csv:"kind"`
	TaskID string `json:"taskId" csv:"task_id"`
	Error  string `json:"error" csv:"error"`
}

type submitter interface {
	Submit(ctx context.Context, kind task.Kind, p *task.Params) (*sunoapi.Submission, error)
}

// Run submits every item of the input file and writes a report with the
// task ids.
func Run(ctx context.Context, cfg *Config) error {
	var count int
	log.Println("batch: started")
	defer func() {
		log.Printf("batch: ended (%d)\n", count)
	}()

	items, err := readItems(cfg.Input)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if cfg.Limit > 0 && len(items) > cfg.Limit {
		items = items[:cfg.Limit]
	}

	svc, err := service.Open(ctx, &cfg.Config)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	defer func() { _ = svc.Close() }()

	rows := submitAll(ctx, svc.Facade, items, cfg.Kind, cfg.Concurrency)
	var nErr int
	for _, r := range rows {
		if r.Error != "" {
			nErr++
			continue
		}
		count++
	}
	if cfg.Output != "" {
		if err := writeRows(cfg.Output, rows); err != nil {
			return fmt.Errorf("batch: %w", err)
		}
	}
	if nErr > 0 {
		return fmt.Errorf("batch: %d of %d items failed", nErr, len(rows))
	}
	return nil
}

func submitAll(ctx context.Context, s submitter, items []*item, defaultKind string, concurrency int) []*row {
	batch := ulid.Make().String()
	if concurrency < 1 {
		concurrency = 1
	}
	rows := make([]*row, len(items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, it := range items {
		r := &row{Batch: batch, Line: i + 1}
		rows[i] = r

		k := it.Kind
		if k == "" {
			k = defaultKind
		}
		kind, err := task.ParseKind(k)
		if err != nil {
			r.Error = err.Error()
			continue
		}
		r.Kind = string(kind)

		select {
		case <-ctx.Done():
			r.Error = ctx.Err().Error()
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(it *item, r *row) {
			defer wg.Done()
			defer func() { <-sem }()
			sub, err := s.Submit(ctx, kind, it.params())
			if err != nil {
				log.Printf("batch: line %d: %v\n", r.Line, err)
				r.Error = err.Error()
				return
			}
			r.TaskID = sub.TaskID
		}(it, r)
	}
	wg.Wait()
	return rows
}

func readItems(input string) ([]*item, error) {
	if input == "" {
		return nil, errors.New("input file is empty")
	}
	b, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("couldn't read input file: %w", err)
	}
	var is []*item
	switch filepath.Ext(input) {
	case ".json":
		if err := json.Unmarshal(b, &is); err != nil {
			return nil, fmt.Errorf("couldn't unmarshal items: %w", err)
		}
	case ".csv":
		if err := gocsv.UnmarshalBytes(b, &is); err != nil {
			return nil, fmt.Errorf("couldn't unmarshal items: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported input format: %s", filepath.Ext(input))
	}
	return is, nil
}

func writeRows(output string, rows []*row) error {
	var b []byte
	var err error
	switch filepath.Ext(output) {
	case ".json":
		b, err = json.MarshalIndent(rows, "", "  ")
	case ".csv":
		b, err = gocsv.MarshalBytes(&rows)
	default:
		return fmt.Errorf("unsupported output format: %s", filepath.Ext(output))
	}
	if err != nil {
		return fmt.Errorf("couldn't marshal report: %w", err)
	}
	if err := os.WriteFile(output, b, 0644); err != nil {
		return fmt.Errorf("couldn't write report: %w", err)
	}
	return nil
}
