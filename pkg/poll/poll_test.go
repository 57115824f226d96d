package poll

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/igolaizola/tunepoll/pkg/registry"
	"github.com/igolaizola/tunepoll/pkg/sunoapi"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type fakeUpstream struct {
	mu      sync.Mutex
	submits int
	records int
	record  func(ctx context.Context, n int) (json.RawMessage, error)
}

func (f *fakeUpstream) Submit(ctx context.Context, kind task.Kind, p *task.Params) (*sunoapi.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return &sunoapi.Submission{TaskID: "task-1", Code: 200, Msg: "success"}, nil
}

func (f *fakeUpstream) Record(ctx context.Context, kind task.Kind, taskID string) (json.RawMessage, error) {
	f.mu.Lock()
	f.records++
	n := f.records
	f.mu.Unlock()
	return f.record(ctx, n)
}

func (f *fakeUpstream) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.records
}

func fixed(raw string) func(context.Context, int) (json.RawMessage, error) {
	return func(context.Context, int) (json.RawMessage, error) {
		return json.RawMessage(raw), nil
	}
}

func newTestFacade(up Upstream, reg registry.Registry) *Facade {
	return New(&Config{
		Upstream: up,
		Registry: reg,
		Backoff:  time.Millisecond,
		Timeout:  time.Second,
	})
}

const mp4Done = `{"successFlag":"SUCCESS","response":{"videoUrl":"https://x/y.mp4"},"musicId":"m1","completeTime":"2024-01-01T00:00:00Z"}`

func TestPollIdempotent(t *testing.T) {
	up := &fakeUpstream{record: fixed(`{"status":"FIRST_SUCCESS","response":{"sunoData":[{"id":"a","audioUrl":"https://x/a.mp3"}]}}`)}
	f := newTestFacade(up, nil)
	ctx := context.Background()
	first := f.Poll(ctx, task.Music, "t1")
	second := f.Poll(ctx, task.Music, "t1")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Poll() = %+v; want %+v", second, first)
	}
	if first.State != task.FirstItemReady {
		t.Fatalf("Poll() state = %s; want %s", first.State, task.FirstItemReady)
	}
}

func TestPollRetry(t *testing.T) {
	up := &fakeUpstream{record: func(ctx context.Context, n int) (json.RawMessage, error) {
		if n < 3 {
			return nil, &sunoapi.StatusError{Status: 502}
		}
		return json.RawMessage(mp4Done), nil
	}}
	f := newTestFacade(up, nil)
	got := f.Poll(context.Background(), task.Mp4, "t1")
	if got.State != task.Succeeded {
		t.Fatalf("Poll() = %+v; want success", got)
	}
	if _, records := up.calls(); records != 3 {
		t.Fatalf("record calls = %d; want 3", records)
	}
}

func TestPollTransportFailure(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		calls int
	}{
		{"retry exhausted", &sunoapi.StatusError{Status: 503}, 3},
		{"maintenance", &sunoapi.APIError{Code: 455, Msg: "maintenance"}, 3},
		{"unauthorized", &sunoapi.APIError{Code: 401, Msg: "unauthorized"}, 1},
		{"not found", &sunoapi.StatusError{Status: 404}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{record: func(context.Context, int) (json.RawMessage, error) {
				return nil, tt.err
			}}
			reg := registry.NewMemory()
			f := newTestFacade(up, reg)
			got := f.Poll(context.Background(), task.Wav, "t1")
			if got.State != task.Failed || got.Error == nil || got.Error.Code != CodeTransport {
				t.Fatalf("Poll() = %+v; want transport failure", got)
			}
			if got.Error.Message == "" {
				t.Fatalf("Poll() error message is empty")
			}
			if _, records := up.calls(); records != tt.calls {
				t.Fatalf("record calls = %d; want %d", records, tt.calls)
			}
			if _, err := reg.Get(context.Background(), "t1"); !errors.Is(err, registry.ErrNotFound) {
				t.Fatalf("registry Get() err = %v; want ErrNotFound", err)
			}
		})
	}
}

func TestPollTimeout(t *testing.T) {
	up := &fakeUpstream{record: func(ctx context.Context, n int) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	f := New(&Config{Upstream: up, Attempts: 2, Backoff: time.Millisecond, Timeout: 10 * time.Millisecond})
	got := f.Poll(context.Background(), task.Lyrics, "t1")
	if got.State != task.Failed || got.Error.Code != CodeTransport {
		t.Fatalf("Poll() = %+v; want transport failure", got)
	}
	if _, records := up.calls(); records != 2 {
		t.Fatalf("record calls = %d; want 2", records)
	}
}

func TestPollEmptyTaskID(t *testing.T) {
	up := &fakeUpstream{record: fixed(`{}`)}
	got := newTestFacade(up, nil).Poll(context.Background(), task.Music, "")
	if got.State != task.Failed || got.Error.Code != CodeValidation {
		t.Fatalf("Poll() = %+v; want validation failure", got)
	}
	if _, records := up.calls(); records != 0 {
		t.Fatalf("record calls = %d; want 0", records)
	}
}

func TestSubmitValidation(t *testing.T) {
	up := &fakeUpstream{}
	f := newTestFacade(up, nil)
	_, err := f.Submit(context.Background(), task.Mp4, &task.Params{TaskID: "t1"})
	var verr *task.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() err = %v; want *task.ValidationError", err)
	}
	if !reflect.DeepEqual(verr.Missing, []string{"audioId"}) {
		t.Fatalf("Submit() missing = %v; want [audioId]", verr.Missing)
	}
	if submits, _ := up.calls(); submits != 0 {
		t.Fatalf("submit calls = %d; want 0", submits)
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	up := &fakeUpstream{record: fixed(mp4Done)}
	reg := registry.NewMemory()
	f := newTestFacade(up, reg)

	sub, err := f.Submit(ctx, task.Mp4, &task.Params{TaskID: "t0", AudioID: "a1"})
	if err != nil {
		t.Fatalf("Submit() err = %v; want nil", err)
	}
	r, err := reg.Get(ctx, sub.TaskID)
	if err != nil {
		t.Fatalf("registry Get() err = %v; want nil", err)
	}
	if r.Last.State != task.Pending || r.Params.AudioID != "a1" {
		t.Fatalf("registry record = %+v; want pending with params", r)
	}

	first := f.Poll(ctx, task.Mp4, sub.TaskID)
	if first.State != task.Succeeded {
		t.Fatalf("Poll() = %+v; want success", first)
	}
	r, err = f.Lookup(ctx, sub.TaskID)
	if err != nil {
		t.Fatalf("Lookup() err = %v; want nil", err)
	}
	if !reflect.DeepEqual(r.Last, first) {
		t.Fatalf("Lookup().Last = %+v; want %+v", r.Last, first)
	}
	if r.Params == nil || r.Params.AudioID != "a1" {
		t.Fatalf("Lookup().Params = %+v; want submission params", r.Params)
	}

	// Terminal records are answered from the registry
	second := f.Poll(ctx, task.Mp4, sub.TaskID)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Poll() = %+v; want %+v", second, first)
	}
	if _, records := up.calls(); records != 1 {
		t.Fatalf("record calls = %d; want 1", records)
	}
}

func TestWait(t *testing.T) {
	up := &fakeUpstream{record: func(ctx context.Context, n int) (json.RawMessage, error) {
		switch n {
		case 1:
			return nil, nil
		case 2:
			return json.RawMessage(`{"status":"PENDING"}`), nil
		default:
			return json.RawMessage(`{"status":"SUCCESS","response":{"audioWavUrl":"https://x/a.wav"},"musicId":"m1"}`), nil
		}
	}}
	f := newTestFacade(up, nil)
	got, err := f.Wait(context.Background(), task.Wav, "t1", time.Millisecond)
	if err != nil {
		t.Fatalf("Wait() err = %v; want nil", err)
	}
	want := &task.WavFile{WavURL: "https://x/a.wav", OriginalAudioID: "m1"}
	if got.State != task.Succeeded || !reflect.DeepEqual(got.Result, task.Result(want)) {
		t.Fatalf("Wait() = %+v; want %+v", got, want)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	up = &fakeUpstream{record: fixed(`{"status":"PENDING"}`)}
	if _, err := newTestFacade(up, nil).Wait(ctx, task.Wav, "t1", time.Hour); err == nil {
		t.Fatalf("Wait() err = nil; want context error")
	}
}

func TestBudget(t *testing.T) {
	tests := []struct {
		cfg  Config
		want time.Duration
	}{
		{Config{}, 3*20*time.Second + 500*time.Millisecond + time.Second},
		{Config{Attempts: 1, Timeout: time.Second}, time.Second},
		{Config{Attempts: 4, Timeout: time.Second, Backoff: time.Second}, 4*time.Second + 7*time.Second},
	}
	for _, tt := range tests {
		cfg := tt.cfg
		if got := New(&cfg).Budget(); got != tt.want {
			t.Fatalf("Budget(%+v) = %s; want %s", tt.cfg, got, tt.want)
		}
	}
}

func TestRegressed(t *testing.T) {
	tests := []struct {
		prev, next task.State
		want       bool
	}{
		{task.Pending, task.Processing, false},
		{task.TextReady, task.TextReady, false},
		{task.FirstItemReady, task.Processing, true},
		{task.TextReady, task.Pending, true},
		{task.FirstItemReady, task.Failed, false},
		{task.State("OTHER"), task.Pending, false},
	}
	for _, tt := range tests {
		if got := regressed(tt.prev, tt.next); got != tt.want {
			t.Fatalf("regressed(%s, %s) = %v; want %v", tt.prev, tt.next, got, tt.want)
		}
	}
}
