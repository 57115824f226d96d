package poll

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/igolaizola/tunepoll/pkg/sunoapi"
	"github.com/igolaizola/tunepoll/pkg/task"
)

// fetch gets the raw record retrying transient failures with exponential
// backoff.
func (f *Facade) fetch(ctx context.Context, kind task.Kind, taskID string) (json.RawMessage, error) {
	wait := f.backoff
	var err error
	for attempt := 1; ; attempt++ {
		var raw json.RawMessage
		raw, err = f.attempt(ctx, kind, taskID)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= f.attempts || !retryable(err) {
			return nil, err
		}
		f.log("poll: attempt %d for %s failed, retrying in %s: %v", attempt, taskID, wait, err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		wait *= 2
	}
}

func (f *Facade) attempt(ctx context.Context, kind task.Kind, taskID string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.upstream.Record(ctx, kind, taskID)
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *sunoapi.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout, 520:
			return true
		}
		return false
	}
	var apiErr *sunoapi.APIError
	if errors.As(err, &apiErr) {
		// 405 rate limited, 455 maintenance
		switch apiErr.Code {
		case 405, 455, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return true
		}
	}
	return false
}
