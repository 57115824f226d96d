package task

import (
	"encoding/json"
	"time"
)

// Record is what a registry keeps about a submitted task.
type Record struct {
	TaskID    string
	Kind      Kind
	Params    *Params
	Last      PollResult
	CreatedAt time.Time
	UpdatedAt time.Time
}

type recordJSON struct {
	TaskID    string          `json:"taskId"`
	Kind      Kind            `json:"kind"`
	Params    *Params         `json:"params,omitempty"`
	State     State           `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ErrorDetail    `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	var result json.RawMessage
	if r.Last.Result != nil {
		b, err := json.Marshal(r.Last.Result)
		if err != nil {
			return nil, err
		}
		result = b
	}
	return json.Marshal(recordJSON{
		TaskID:    r.TaskID,
		Kind:      r.Kind,
		Params:    r.Params,
		State:     r.Last.State,
		Result:    result,
		Error:     r.Last.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var v recordJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	result, err := DecodeResult(v.Kind, v.Result)
	if err != nil {
		return err
	}
	*r = Record{
		TaskID: v.TaskID,
		Kind:   v.Kind,
		Params: v.Params,
		Last: PollResult{
			TaskID: v.TaskID,
			State:  v.State,
			Result: result,
			Error:  v.Error,
		},
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	return nil
}
