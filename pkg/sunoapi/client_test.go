package sunoapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/igolaizola/tunepoll/pkg/task"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(&Config{
		Key:     "secret",
		BaseURL: srv.URL + "/api/v1",
		Wait:    -1,
	})
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		kind   task.Kind
		params task.Params
		path   string
	}{
		{task.Music, task.Params{Prompt: "lofi"}, "/api/v1/generate"},
		{task.Extend, task.Params{AudioID: "a1"}, "/api/v1/generate/extend"},
		{task.Lyrics, task.Params{Prompt: "rain"}, "/api/v1/lyrics"},
		{task.VocalRemoval, task.Params{TaskID: "t0", AudioID: "a1"}, "/api/v1/vocal-removal/generate"},
		{task.Wav, task.Params{AudioID: "a1"}, "/api/v1/wav/generate"},
		{task.Mp4, task.Params{TaskID: "t0", AudioID: "a1"}, "/api/v1/mp4/generate"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			var body map[string]any
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != tt.path {
					t.Errorf("request = %s %s; want POST %s", r.Method, r.URL.Path, tt.path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("authorization = %q; want Bearer secret", got)
				}
				b, _ := io.ReadAll(r.Body)
				if err := json.Unmarshal(b, &body); err != nil {
					t.Errorf("couldn't decode body: %v", err)
				}
				_, _ = w.Write([]byte(`{"code":200,"msg":"success","data":{"taskId":"task-1"}}`))
			})
			got, err := c.Submit(context.Background(), tt.kind, &tt.params)
			if err != nil {
				t.Fatalf("Submit() err = %v; want nil", err)
			}
			if got.TaskID != "task-1" {
				t.Fatalf("Submit() taskId = %q; want task-1", got.TaskID)
			}
			if body["callBackUrl"] != callbackPlaceholder {
				t.Fatalf("callBackUrl = %v; want %s", body["callBackUrl"], callbackPlaceholder)
			}
		})
	}
}

func TestSubmitMusicDefaults(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		_, _ = w.Write([]byte(`{"code":200,"msg":"success","data":{"taskId":"task-1"}}`))
	})
	if _, err := c.Submit(context.Background(), task.Music, &task.Params{Prompt: "p"}); err != nil {
		t.Fatalf("Submit() err = %v; want nil", err)
	}
	if body["model"] != defaultModel {
		t.Fatalf("model = %v; want %s", body["model"], defaultModel)
	}
	if body["customMode"] != false || body["instrumental"] != false {
		t.Fatalf("body = %v; want explicit customMode and instrumental", body)
	}
}

func TestRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/mp4/record-info" {
			t.Errorf("path = %s; want /api/v1/mp4/record-info", r.URL.Path)
		}
		switch r.URL.Query().Get("taskId") {
		case "done":
			_, _ = w.Write([]byte(`{"code":200,"msg":"success","data":{"successFlag":"SUCCESS"}}`))
		default:
			_, _ = w.Write([]byte(`{"code":200,"msg":"success","data":null}`))
		}
	})
	raw, err := c.Record(context.Background(), task.Mp4, "done")
	if err != nil {
		t.Fatalf("Record() err = %v; want nil", err)
	}
	if string(raw) != `{"successFlag":"SUCCESS"}` {
		t.Fatalf("Record() = %s; want the data field", raw)
	}
	raw, err = c.Record(context.Background(), task.Mp4, "pending")
	if err != nil {
		t.Fatalf("Record() err = %v; want nil", err)
	}
	if raw != nil {
		t.Fatalf("Record() = %s; want nil", raw)
	}
}

func TestErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("taskId") {
		case "down":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		case "nokey":
			_, _ = w.Write([]byte(`{"code":401,"msg":"unauthorized"}`))
		}
	})
	_, err := c.Record(context.Background(), task.Music, "down")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusBadGateway {
		t.Fatalf("Record() err = %v; want status 502", err)
	}
	if Rejected(err) {
		t.Fatalf("Rejected(502) = true; want false")
	}
	_, err = c.Record(context.Background(), task.Music, "nokey")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 401 {
		t.Fatalf("Record() err = %v; want code 401", err)
	}
	if !Rejected(err) {
		t.Fatalf("Rejected(401) = false; want true")
	}
}
