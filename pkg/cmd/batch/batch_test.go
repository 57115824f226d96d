package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/igolaizola/tunepoll/pkg/sunoapi"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	count int
}

func (f *fakeSubmitter) Submit(ctx context.Context, kind task.Kind, p *task.Params) (*sunoapi.Submission, error) {
	if err := p.Validate(kind); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return &sunoapi.Submission{TaskID: fmt.Sprintf("task-%s", p.Prompt)}, nil
}

func TestReadItems(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "in.csv")
	csv := "kind,prompt,style,instrumental\nmusic,rain,lofi,true\nlyrics,sun,,false\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	items, err := readItems(csvPath)
	if err != nil {
		t.Fatalf("readItems(csv) err = %v; want nil", err)
	}
	if len(items) != 2 || items[0].Prompt != "rain" || !items[0].Instrumental || items[1].Kind != "lyrics" {
		t.Fatalf("readItems(csv) = %+v; want 2 parsed items", items)
	}

	jsonPath := filepath.Join(dir, "in.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"prompt":"rain","customMode":true,"style":"s","title":"t"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	items, err = readItems(jsonPath)
	if err != nil {
		t.Fatalf("readItems(json) err = %v; want nil", err)
	}
	if len(items) != 1 || !items[0].CustomMode {
		t.Fatalf("readItems(json) = %+v; want custom mode item", items)
	}

	if _, err := readItems(filepath.Join(dir, "in.txt")); err == nil {
		t.Fatalf("readItems(txt) err = nil; want error")
	}
}

func TestSubmitAll(t *testing.T) {
	items := []*item{
		{Prompt: "a"},
		{Kind: "lyrics", Prompt: "b"},
		{Kind: "mp4", TaskID: "t1"},
		{Kind: "karaoke", Prompt: "c"},
	}
	s := &fakeSubmitter{}
	rows := submitAll(context.Background(), s, items, "music", 2)
	if len(rows) != 4 {
		t.Fatalf("submitAll() = %d rows; want 4", len(rows))
	}
	if rows[0].TaskID != "task-a" || rows[0].Kind != "music" {
		t.Fatalf("row 1 = %+v; want music task-a", rows[0])
	}
	if rows[1].TaskID != "task-b" || rows[1].Kind != "lyrics" {
		t.Fatalf("row 2 = %+v; want lyrics task-b", rows[1])
	}
	if !strings.Contains(rows[2].Error, "audioId") {
		t.Fatalf("row 3 error = %q; want missing audioId", rows[2].Error)
	}
	if rows[3].Error == "" {
		t.Fatalf("row 4 error is empty; want unknown kind")
	}
	if s.count != 2 {
		t.Fatalf("submits = %d; want 2", s.count)
	}
	batch := rows[0].Batch
	for _, r := range rows {
		if r.Batch == "" || r.Batch != batch {
			t.Fatalf("row %d batch = %q; want %q", r.Line, r.Batch, batch)
		}
	}

	out := filepath.Join(t.TempDir(), "out.csv")
	if err := writeRows(out, rows); err != nil {
		t.Fatalf("writeRows() err = %v; want nil", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "batch,line,kind,task_id,error") {
		t.Fatalf("report = %q; want csv header", b)
	}
}
