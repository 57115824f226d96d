package task

import (
	"fmt"
	"strings"
)

// Params are the caller supplied submission parameters. Each kind reads the
// subset it needs. The upstream callback URL is deliberately absent.
type Params struct {
	Prompt           string   `json:"prompt,omitempty"`
	Style            string   `json:"style,omitempty"`
	Title            string   `json:"title,omitempty"`
	NegativeTags     string   `json:"negativeTags,omitempty"`
	CustomMode       bool     `json:"customMode,omitempty"`
	Instrumental     bool     `json:"instrumental,omitempty"`
	Model            string   `json:"model,omitempty"`
	VocalGender      string   `json:"vocalGender,omitempty"`
	StyleWeight      *float64 `json:"styleWeight,omitempty"`
	TaskID           string   `json:"taskId,omitempty"`
	AudioID          string   `json:"audioId,omitempty"`
	ContinueAt       *float64 `json:"continueAt,omitempty"`
	DefaultParamFlag bool     `json:"defaultParamFlag,omitempty"`
	Author           string   `json:"author,omitempty"`
	DomainName       string   `json:"domainName,omitempty"`
}

// ValidationError reports missing or malformed caller input. It is never
// retried.
type ValidationError struct {
	Kind    Kind
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("task: missing required field(s) for %s: %s", e.Kind, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("task: invalid %s request: %s", e.Kind, e.Reason)
}

// Validate checks the kind specific required fields.
func (p *Params) Validate(kind Kind) error {
	if p == nil {
		p = &Params{}
	}
	var missing []string
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	switch kind {
	case Music:
		need("prompt", p.Prompt)
		if p.CustomMode {
			need("style", p.Style)
			need("title", p.Title)
		}
	case Extend:
		need("audioId", p.AudioID)
		if p.DefaultParamFlag {
			need("prompt", p.Prompt)
			need("style", p.Style)
			need("title", p.Title)
			if p.ContinueAt == nil {
				missing = append(missing, "continueAt")
			}
		}
	case Lyrics:
		need("prompt", p.Prompt)
	case VocalRemoval, Mp4:
		need("taskId", p.TaskID)
		need("audioId", p.AudioID)
	case Wav:
		if strings.TrimSpace(p.TaskID) == "" && strings.TrimSpace(p.AudioID) == "" {
			missing = append(missing, "taskId|audioId")
		}
	default:
		return &ValidationError{Kind: kind, Reason: "unknown kind"}
	}
	if len(missing) > 0 {
		return &ValidationError{Kind: kind, Missing: missing}
	}
	if p.ContinueAt != nil && *p.ContinueAt < 0 {
		return &ValidationError{Kind: kind, Reason: "continueAt must be positive"}
	}
	return nil
}
