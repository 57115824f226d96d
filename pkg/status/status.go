// Package status maps raw upstream task records to the unified poll result.
// Every generation kind has its own vocabulary table and record schema; the
// functions here are pure and never fail.
package status

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/igolaizola/tunepoll/pkg/task"
)

// Outcome is a poll result plus what the mapper saw. Recognized is false when
// the upstream token is outside the known vocabulary of the kind.
type Outcome struct {
	Result     task.PollResult
	Token      string
	Recognized bool
}

type mapper func(taskID string, raw []byte) Outcome

var mappers = map[task.Kind]mapper{
	task.Music:        mapMusic,
	task.Extend:       mapExtend,
	task.Lyrics:       mapLyrics,
	task.VocalRemoval: mapVocalRemoval,
	task.Wav:          mapWav,
	task.Mp4:          mapMp4,
}

// Map converts a raw record of the given kind to a poll result.
func Map(kind task.Kind, taskID string, raw []byte) task.PollResult {
	return Inspect(kind, taskID, raw).Result
}

// Inspect is Map with the observed status token attached.
func Inspect(kind task.Kind, taskID string, raw []byte) Outcome {
	m, ok := mappers[kind]
	if !ok {
		return Outcome{
			Result: task.Fail(taskID, "UNKNOWN_KIND", fmt.Sprintf("unknown generation kind %q", kind)),
		}
	}
	if isNull(raw) {
		return Outcome{
			Result:     task.PollResult{TaskID: taskID, State: task.Pending},
			Recognized: true,
		}
	}
	return m(taskID, raw)
}

func isNull(raw []byte) bool {
	b := bytes.TrimSpace(raw)
	return len(b) == 0 || string(b) == "null"
}

// vocabulary is the token table of one kind.
type vocabulary struct {
	kind     task.Kind
	states   map[string]task.State
	foldCase bool
}

func (v vocabulary) lookup(token string) (task.State, bool) {
	if v.foldCase {
		token = strings.ToUpper(token)
	}
	s, ok := v.states[token]
	return s, ok
}

// observation is what a kind extracted from its record.
type observation struct {
	token   string
	payload task.Result
	// ready is true when the payload carries the data a success needs.
	ready   bool
	errCode string
	errMsg  string
}

func (v vocabulary) resolve(taskID string, o observation) Outcome {
	out := Outcome{Token: o.token, Recognized: true}
	token := strings.TrimSpace(o.token)
	if token == "" {
		out.Result = task.PollResult{TaskID: taskID, State: task.Pending}
		return out
	}
	state, ok := v.lookup(token)
	if !ok {
		out.Recognized = false
		out.Result = task.PollResult{TaskID: taskID, State: task.Processing}
		return out
	}
	switch state {
	case task.Failed:
		code := o.errCode
		if code == "" {
			code = token
		}
		msg := strings.TrimSpace(o.errMsg)
		if msg == "" {
			msg = fmt.Sprintf("%s task failed with status %s", v.kind, token)
		}
		out.Result = task.Fail(taskID, code, msg)
	case task.Succeeded:
		if !o.ready || o.payload == nil {
			out.Result = task.PollResult{TaskID: taskID, State: task.Processing}
			return out
		}
		out.Result = task.PollResult{TaskID: taskID, State: task.Succeeded, Result: o.payload}
	case task.TextReady, task.FirstItemReady:
		out.Result = task.PollResult{TaskID: taskID, State: state, Result: o.payload}
	default:
		out.Result = task.PollResult{TaskID: taskID, State: state}
	}
	return out
}

// undecodable is the outcome for records that don't match the kind schema.
func undecodable(taskID string) Outcome {
	return Outcome{
		Result: task.PollResult{TaskID: taskID, State: task.Processing},
	}
}

// firstNonEmpty returns the first non blank value.
func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
