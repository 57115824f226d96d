// Package task holds the generation task model shared by every kind: the
// unified state set, the poll result and the submission parameters.
package task

import (
	"fmt"
	"strings"
)

// State is the unified lifecycle state of a generation task as observed
// through polling.
type State string

const (
	Pending        State = "PENDING"
	Processing     State = "PROCESSING"
	TextReady      State = "TEXT_READY"
	FirstItemReady State = "FIRST_READY"
	Succeeded      State = "SUCCESS"
	Failed         State = "ERROR"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

func (s State) Valid() bool {
	switch s {
	case Pending, Processing, TextReady, FirstItemReady, Succeeded, Failed:
		return true
	default:
		return false
	}
}

// Rank orders the forward path Pending → Processing → TextReady →
// FirstItemReady → Succeeded. Failed is reachable from any state and ranks -1.
func (s State) Rank() int {
	switch s {
	case Pending:
		return 0
	case Processing:
		return 1
	case TextReady:
		return 2
	case FirstItemReady:
		return 3
	case Succeeded:
		return 4
	default:
		return -1
	}
}

// Kind is the generation kind of a task. It selects the upstream routes and
// the status mapping table.
type Kind string

const (
	Music        Kind = "music"
	Lyrics       Kind = "lyrics"
	VocalRemoval Kind = "vocal-removal"
	Wav          Kind = "wav"
	Mp4          Kind = "mp4"
	Extend       Kind = "extend"
)

// Kinds lists every supported kind.
var Kinds = []Kind{Music, Lyrics, VocalRemoval, Wav, Mp4, Extend}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Kinds {
		if k == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("task: unknown kind %q", s)
}

// ErrorDetail describes why a task failed.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// PollResult is the uniform answer to a status query. It is built once per
// poll and never modified afterwards.
type PollResult struct {
	TaskID string       `json:"taskId"`
	State  State        `json:"state"`
	Result Result       `json:"result"`
	Error  *ErrorDetail `json:"error"`
}

// Fail builds a failed result.
func Fail(taskID, code, message string) PollResult {
	return PollResult{
		TaskID: taskID,
		State:  Failed,
		Error:  &ErrorDetail{Code: code, Message: message},
	}
}
