// Package poll is the single entry point to submit generation tasks and
// query their state regardless of the generation kind.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/igolaizola/tunepoll/pkg/registry"
	"github.com/igolaizola/tunepoll/pkg/status"
	"github.com/igolaizola/tunepoll/pkg/sunoapi"
	"github.com/igolaizola/tunepoll/pkg/task"
)

// Codes of failures detected by the facade itself.
const (
	CodeTransport  = "TRANSPORT"
	CodeValidation = "VALIDATION"
)

// Upstream is the transport to the generation provider.
type Upstream interface {
	Submit(ctx context.Context, kind task.Kind, p *task.Params) (*sunoapi.Submission, error)
	Record(ctx context.Context, kind task.Kind, taskID string) (json.RawMessage, error)
}

type Config struct {
	Upstream Upstream
	// Registry is optional.
	Registry registry.Registry
	// Attempts is the maximum number of record fetches per poll.
	Attempts int
	// Backoff is the wait after the first failed attempt, doubled after
	// each following one.
	Backoff time.Duration
	// Timeout applies to every upstream call.
	Timeout time.Duration
	Debug   bool
}

type Facade struct {
	upstream Upstream
	registry registry.Registry
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	debug    bool
}

func New(cfg *Config) *Facade {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := cfg.Backoff
	if backoff == 0 {
		backoff = 500 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Facade{
		upstream: cfg.Upstream,
		registry: cfg.Registry,
		attempts: attempts,
		backoff:  backoff,
		timeout:  timeout,
		debug:    cfg.Debug,
	}
}

// Budget is the longest a single poll can spend upstream: every attempt
// timing out plus the backoff waits between them.
func (f *Facade) Budget() time.Duration {
	d := time.Duration(f.attempts) * f.timeout
	wait := f.backoff
	for i := 1; i < f.attempts; i++ {
		d += wait
		wait *= 2
	}
	return d
}

func (f *Facade) log(format string, args ...interface{}) {
	if f.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Submit validates the params and sends the job upstream. A
// *task.ValidationError is returned before any upstream call if required
// params are missing. Submissions are never retried.
func (f *Facade) Submit(ctx context.Context, kind task.Kind, p *task.Params) (*sunoapi.Submission, error) {
	if p == nil {
		p = &task.Params{}
	}
	if err := p.Validate(kind); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	sub, err := f.upstream.Submit(ctx, kind, p)
	if err != nil {
		return nil, fmt.Errorf("poll: couldn't submit %s task: %w", kind, err)
	}
	f.log("poll: submitted %s task %s", kind, sub.TaskID)

	if f.registry != nil {
		now := time.Now().UTC()
		r := &task.Record{
			TaskID:    sub.TaskID,
			Kind:      kind,
			Params:    p,
			Last:      task.PollResult{TaskID: sub.TaskID, State: task.Pending},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := f.registry.Put(ctx, r); err != nil {
			log.Printf("poll: couldn't register task %s: %v\n", sub.TaskID, err)
		}
	}
	return sub, nil
}

// Poll returns the current state of a task. It never fails: transport
// problems are reported as a failed result with code TRANSPORT.
func (f *Facade) Poll(ctx context.Context, kind task.Kind, taskID string) task.PollResult {
	if taskID == "" {
		return task.Fail(taskID, CodeValidation, "task id is empty")
	}

	// Terminal tasks don't change upstream anymore
	prev := f.lookup(ctx, taskID)
	if prev != nil && prev.Kind == kind && prev.Last.State.Terminal() {
		f.log("poll: task %s already %s", taskID, prev.Last.State)
		return prev.Last
	}

	raw, err := f.fetch(ctx, kind, taskID)
	if err != nil {
		log.Printf("poll: couldn't fetch %s task %s: %v\n", kind, taskID, err)
		return task.Fail(taskID, CodeTransport, err.Error())
	}

	out := status.Inspect(kind, taskID, raw)
	if !out.Recognized {
		log.Printf("poll: unrecognized %s status %q for task %s\n", kind, out.Token, taskID)
	}
	f.log("poll: %s task %s is %s (%s)", kind, taskID, out.Result.State, out.Token)

	f.update(ctx, kind, prev, out.Result)
	return out.Result
}

// Wait polls until the task reaches a terminal state or the context is done.
func (f *Facade) Wait(ctx context.Context, kind task.Kind, taskID string, interval time.Duration) (task.PollResult, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	var last task.State
	for {
		res := f.Poll(ctx, kind, taskID)
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if res.State != last {
			log.Printf("poll: %s task %s: %s\n", kind, taskID, res.State)
			last = res.State
		}
		if res.State.Terminal() {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Lookup returns the registered record of a task.
func (f *Facade) Lookup(ctx context.Context, taskID string) (*task.Record, error) {
	if f.registry == nil {
		return nil, registry.ErrNotFound
	}
	return f.registry.Get(ctx, taskID)
}

func (f *Facade) lookup(ctx context.Context, taskID string) *task.Record {
	if f.registry == nil {
		return nil
	}
	r, err := f.registry.Get(ctx, taskID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Printf("poll: couldn't get task %s from registry: %v\n", taskID, err)
		return nil
	}
	return r
}

// regressed reports whether next is behind prev on the forward path.
// Failures are reachable from any state.
func regressed(prev, next task.State) bool {
	if next == task.Failed || !prev.Valid() || !next.Valid() {
		return false
	}
	return next.Rank() < prev.Rank()
}

func (f *Facade) update(ctx context.Context, kind task.Kind, prev *task.Record, res task.PollResult) {
	if f.registry == nil {
		return
	}
	now := time.Now().UTC()
	r := &task.Record{
		TaskID:    res.TaskID,
		Kind:      kind,
		CreatedAt: now,
	}
	if prev != nil && prev.Kind == kind {
		r.Params = prev.Params
		r.CreatedAt = prev.CreatedAt
		if regressed(prev.Last.State, res.State) {
			log.Printf("poll: task %s went back from %s to %s\n", res.TaskID, prev.Last.State, res.State)
		}
	}
	r.Last = res
	r.UpdatedAt = now
	if err := f.registry.Put(ctx, r); err != nil {
		log.Printf("poll: couldn't update task %s in registry: %v\n", res.TaskID, err)
	}
}
