package task

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	continueAt := 30.0
	tests := []struct {
		name    string
		kind    Kind
		params  Params
		missing []string
	}{
		{"music ok", Music, Params{Prompt: "lofi beats"}, nil},
		{"music no prompt", Music, Params{}, []string{"prompt"}},
		{"music custom", Music, Params{Prompt: "p", CustomMode: true}, []string{"style", "title"}},
		{"lyrics no prompt", Lyrics, Params{Style: "rock"}, []string{"prompt"}},
		{"mp4 no audio", Mp4, Params{TaskID: "t1"}, []string{"audioId"}},
		{"mp4 ok", Mp4, Params{TaskID: "t1", AudioID: "a1"}, nil},
		{"vocal no task", VocalRemoval, Params{AudioID: "a1"}, []string{"taskId"}},
		{"wav task only", Wav, Params{TaskID: "t1"}, nil},
		{"wav audio only", Wav, Params{AudioID: "a1"}, nil},
		{"wav none", Wav, Params{}, []string{"taskId|audioId"}},
		{"extend default", Extend, Params{AudioID: "a1"}, nil},
		{"extend custom", Extend, Params{AudioID: "a1", DefaultParamFlag: true, Prompt: "p"}, []string{"style", "title", "continueAt"}},
		{"extend custom ok", Extend, Params{AudioID: "a1", DefaultParamFlag: true, Prompt: "p", Style: "s", Title: "t", ContinueAt: &continueAt}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate(tt.kind)
			if tt.missing == nil {
				if err != nil {
					t.Fatalf("Validate() err = %v; want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() err = %v; want *ValidationError", err)
			}
			if !reflect.DeepEqual(verr.Missing, tt.missing) {
				t.Fatalf("Validate() missing = %v; want %v", verr.Missing, tt.missing)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Fatalf("ParseKind(%q) err = %v; want nil", k, err)
		}
		if got != k {
			t.Fatalf("ParseKind(%q) = %v; want %v", k, got, k)
		}
	}
	if _, err := ParseKind("karaoke"); err == nil {
		t.Fatalf("ParseKind(karaoke) err = nil; want error")
	}
}

func TestStateOrder(t *testing.T) {
	path := []State{Pending, Processing, TextReady, FirstItemReady, Succeeded}
	for i := 1; i < len(path); i++ {
		if path[i].Rank() <= path[i-1].Rank() {
			t.Fatalf("%s.Rank() = %d; want > %d", path[i], path[i].Rank(), path[i-1].Rank())
		}
	}
	if !Succeeded.Terminal() || !Failed.Terminal() {
		t.Fatalf("Succeeded and Failed must be terminal")
	}
	if FirstItemReady.Terminal() {
		t.Fatalf("FirstItemReady.Terminal() = true; want false")
	}
}

func TestRecordJSON(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := Record{
		TaskID: "t1",
		Kind:   Mp4,
		Params: &Params{TaskID: "m", AudioID: "a"},
		Last: PollResult{
			TaskID: "t1",
			State:  Succeeded,
			Result: &VideoFile{VideoURL: "https://x/y.mp4", OriginalAudioID: "m1", CreatedAt: "2024-01-01T00:00:00Z"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() err = %v; want nil", err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal() err = %v; want nil", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("Unmarshal() = %+v; want %+v", out, in)
	}
}
