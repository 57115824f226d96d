// Package sunoapi is the transport to the upstream generation provider. It
// submits jobs and fetches raw task records; it doesn't interpret them.
package sunoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/igolaizola/tunepoll/pkg/ratelimit"
	"github.com/igolaizola/tunepoll/pkg/task"
)

const DefaultBaseURL = "https://api.sunoapi.org/api/v1"

// The provider requires a callback URL on every submission. Results are
// fetched by polling, so the URL is never called back.
const callbackPlaceholder = "https://example.com/callback"

const defaultModel = "V4_5"

type Client struct {
	client    *http.Client
	baseURL   string
	key       string
	model     string
	debug     bool
	ratelimit ratelimit.Lock
}

type Config struct {
	Key     string
	BaseURL string
	// Model is used when the submission params don't set one.
	Model  string
	Wait   time.Duration
	Debug  bool
	Client *http.Client
}

func New(cfg *Config) *Client {
	wait := cfg.Wait
	if wait == 0 {
		wait = 250 * time.Millisecond
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client:    client,
		baseURL:   baseURL,
		key:       cfg.Key,
		model:     model,
		debug:     cfg.Debug,
		ratelimit: ratelimit.New(wait),
	}
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

type route struct {
	submit string
	record string
}

var routes = map[task.Kind]route{
	task.Music:        {"generate", "generate/record-info"},
	task.Extend:       {"generate/extend", "generate/record-info"},
	task.Lyrics:       {"lyrics", "lyrics/record-info"},
	task.VocalRemoval: {"vocal-removal/generate", "vocal-removal/record-info"},
	task.Wav:          {"wav/generate", "wav/record-info"},
	task.Mp4:          {"mp4/generate", "mp4/record-info"},
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Submission is the provider answer to an accepted job.
type Submission struct {
	TaskID string          `json:"taskId"`
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Submit sends a generation job of the given kind. Params must have been
// validated by the caller.
func (c *Client) Submit(ctx context.Context, kind task.Kind, p *task.Params) (*Submission, error) {
	r, ok := routes[kind]
	if !ok {
		return nil, fmt.Errorf("sunoapi: unknown kind %q", kind)
	}
	if p == nil {
		p = &task.Params{}
	}
	var env envelope
	if err := c.do(ctx, "POST", r.submit, c.body(kind, p), &env); err != nil {
		return nil, err
	}
	var data struct {
		TaskID string `json:"taskId"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("sunoapi: couldn't unmarshal %s submission: %w", kind, err)
		}
	}
	if data.TaskID == "" {
		return nil, fmt.Errorf("sunoapi: empty task id for %s submission (%s)", kind, env.Msg)
	}
	return &Submission{
		TaskID: data.TaskID,
		Code:   env.Code,
		Msg:    env.Msg,
		Data:   env.Data,
	}, nil
}

// Record fetches the raw task record. A nil record means the provider has
// nothing to report yet.
func (c *Client) Record(ctx context.Context, kind task.Kind, taskID string) (json.RawMessage, error) {
	r, ok := routes[kind]
	if !ok {
		return nil, fmt.Errorf("sunoapi: unknown kind %q", kind)
	}
	path := fmt.Sprintf("%s?taskId=%s", r.record, url.QueryEscape(taskID))
	var env envelope
	if err := c.do(ctx, "GET", path, nil, &env); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	return env.Data, nil
}

// body builds the request body of a kind. The callback URL is always set.
func (c *Client) body(kind task.Kind, p *task.Params) map[string]any {
	b := map[string]any{
		"callBackUrl": callbackPlaceholder,
	}
	set := func(k, v string) {
		if v != "" {
			b[k] = v
		}
	}
	model := p.Model
	if model == "" {
		model = c.model
	}
	switch kind {
	case task.Music:
		b["prompt"] = p.Prompt
		b["customMode"] = p.CustomMode
		b["instrumental"] = p.Instrumental
		b["model"] = model
		set("style", p.Style)
		set("title", p.Title)
		set("negativeTags", p.NegativeTags)
		set("vocalGender", p.VocalGender)
		if p.StyleWeight != nil {
			b["styleWeight"] = *p.StyleWeight
		}
	case task.Extend:
		b["audioId"] = p.AudioID
		b["defaultParamFlag"] = p.DefaultParamFlag
		b["model"] = model
		set("prompt", p.Prompt)
		set("style", p.Style)
		set("title", p.Title)
		set("negativeTags", p.NegativeTags)
		if p.ContinueAt != nil {
			b["continueAt"] = *p.ContinueAt
		}
	case task.Lyrics:
		b["prompt"] = p.Prompt
	case task.VocalRemoval, task.Wav:
		set("taskId", p.TaskID)
		set("audioId", p.AudioID)
	case task.Mp4:
		b["taskId"] = p.TaskID
		b["audioId"] = p.AudioID
		set("author", p.Author)
		set("domainName", p.DomainName)
	}
	return b
}

// StatusError is a non 2xx HTTP answer.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// APIError is an envelope with a non 200 code.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Msg)
}

func (c *Client) do(ctx context.Context, method, path string, in any, out *envelope) error {
	var body []byte
	var reqBody io.Reader
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("sunoapi: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	c.log("sunoapi: do %s %s %s", method, path, string(body))

	u := fmt.Sprintf("%s/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("sunoapi: couldn't create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if in != nil {
		req.Header.Set("content-type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("authorization", fmt.Sprintf("Bearer %s", c.key))
	}

	unlock := c.ratelimit.Lock(ctx)
	defer unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sunoapi: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sunoapi: couldn't read response body: %w", err)
	}
	c.log("sunoapi: response %s %s %d %s", method, path, resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return fmt.Errorf("sunoapi: %s %s returned: %w", method, u, &StatusError{Status: resp.StatusCode, Body: errMessage})
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("sunoapi: couldn't unmarshal response body: %w", err)
	}
	if out.Code != 0 && out.Code != http.StatusOK {
		return fmt.Errorf("sunoapi: %s %s rejected: %w", method, u, &APIError{Code: out.Code, Msg: out.Msg})
	}
	return nil
}

// Rejected reports whether err is a provider rejection of the request
// itself, as opposed to a transport problem.
func Rejected(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status >= 400 && statusErr.Status < 500
}
