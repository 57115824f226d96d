package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/igolaizola/tunepoll/pkg/poll"
	"github.com/igolaizola/tunepoll/pkg/registry"
	"github.com/igolaizola/tunepoll/pkg/sunoapi"
	"github.com/igolaizola/tunepoll/pkg/task"
)

type facade interface {
	Submit(ctx context.Context, kind task.Kind, p *task.Params) (*sunoapi.Submission, error)
	Poll(ctx context.Context, kind task.Kind, taskID string) task.PollResult
	Lookup(ctx context.Context, taskID string) (*task.Record, error)
	Budget() time.Duration
}

type handler struct {
	facade facade
}

// errorResponse is the body of every non 2xx answer.
type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

type submitResponse struct {
	TaskID string          `json:"taskId"`
	Kind   task.Kind       `json:"kind"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type statusResponse struct {
	TaskID    string      `json:"taskId"`
	Status    task.State  `json:"status"`
	Result    task.Result `json:"result"`
	Error     *string     `json:"error"`
	ErrorCode *string     `json:"errorCode"`
}

func newStatusResponse(res task.PollResult) *statusResponse {
	resp := &statusResponse{
		TaskID: res.TaskID,
		Status: res.State,
		Result: res.Result,
	}
	if res.Error != nil {
		msg := res.Error.Message
		resp.Error = &msg
		if res.Error.Code != "" {
			code := res.Error.Code
			resp.ErrorCode = &code
		}
	}
	return resp
}

func (h *handler) kind(w http.ResponseWriter, r *http.Request) (task.Kind, bool) {
	kind, err := task.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, &errorResponse{Code: "UNKNOWN_KIND", Message: err.Error()})
		return "", false
	}
	return kind, true
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	var p task.Params
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, &errorResponse{
			Code:    poll.CodeValidation,
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}
	sub, err := h.facade.Submit(r.Context(), kind, &p)
	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, &errorResponse{
			Code:    poll.CodeValidation,
			Message: verr.Error(),
			Missing: verr.Missing,
		})
		return
	case err != nil:
		log.Printf("web: couldn't submit %s task: %v\n", kind, err)
		code := poll.CodeTransport
		if sunoapi.Rejected(err) {
			code = "UPSTREAM"
		}
		writeJSON(w, http.StatusBadGateway, &errorResponse{Code: code, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, &submitResponse{
		TaskID: sub.TaskID,
		Kind:   kind,
		Data:   sub.Data,
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	taskID := r.URL.Query().Get("taskId")
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, &errorResponse{
			Code:    poll.CodeValidation,
			Message: "taskId query parameter is required",
		})
		return
	}
	// Failures are reported in the body with a 200
	res := h.facade.Poll(r.Context(), kind, taskID)
	writeJSON(w, http.StatusOK, newStatusResponse(res))
}

func (h *handler) task(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	rec, err := h.facade.Lookup(r.Context(), taskID)
	if errors.Is(err, registry.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, &errorResponse{Code: "NOT_FOUND", Message: fmt.Sprintf("task %s not found", taskID)})
		return
	}
	if err != nil {
		log.Printf("web: couldn't lookup task %s: %v\n", taskID, err)
		writeJSON(w, http.StatusInternalServerError, &errorResponse{Code: "REGISTRY", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("web: couldn't encode response:", err)
	}
}
