package status

import (
	"encoding/json"

	"github.com/igolaizola/tunepoll/pkg/task"
)

type musicRecord struct {
	TaskID        string `json:"taskId"`
	ParentMusicID string `json:"parentMusicId"`
	Type          string `json:"type"`
	OperationType string `json:"operationType"`
	Response      *struct {
		TaskID   string     `json:"taskId"`
		SunoData []sunoItem `json:"sunoData"`
	} `json:"response"`
}

type sunoItem struct {
	ID                   string `json:"id"`
	AudioURL             string `json:"audioUrl"`
	StreamAudioURL       string `json:"streamAudioUrl"`
	SourceAudioURL       string `json:"sourceAudioUrl"`
	SourceStreamAudioURL string `json:"sourceStreamAudioUrl"`
	ImageURL             string `json:"imageUrl"`
	Title                string `json:"title"`
	Tags                 string `json:"tags"`
	Prompt               string `json:"prompt"`
	ModelName            string `json:"modelName"`
	Duration             number `json:"duration"`
	CreateTime           text   `json:"createTime"`
}

var musicVocabulary = vocabulary{
	kind: task.Music,
	states: map[string]task.State{
		"PENDING":               task.Pending,
		"TEXT_SUCCESS":          task.TextReady,
		"FIRST_SUCCESS":         task.FirstItemReady,
		"SUCCESS":               task.Succeeded,
		"CREATE_TASK_FAILED":    task.Failed,
		"GENERATE_AUDIO_FAILED": task.Failed,
		"CALLBACK_EXCEPTION":    task.Failed,
		"SENSITIVE_WORD_ERROR":  task.Failed,
	},
}

func mapMusic(taskID string, raw []byte) Outcome {
	return mapTracks(musicVocabulary, taskID, raw)
}

// mapTracks maps the records of kinds whose payload is a list of audio
// variants.
func mapTracks(v vocabulary, taskID string, raw []byte) Outcome {
	h, ok := decodeHeader(raw)
	if !ok {
		return undecodable(taskID)
	}
	o := h.observe(h.Status)
	var r musicRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return v.resolve(taskID, o)
	}
	if r.Response != nil && len(r.Response.SunoData) > 0 {
		var tracks task.Tracks
		for _, d := range r.Response.SunoData {
			if d.AudioURL != "" {
				o.ready = true
			}
			tracks = append(tracks, task.Track{
				ID:                   d.ID,
				AudioURL:             d.AudioURL,
				StreamAudioURL:       d.StreamAudioURL,
				SourceAudioURL:       d.SourceAudioURL,
				SourceStreamAudioURL: d.SourceStreamAudioURL,
				ImageURL:             d.ImageURL,
				Title:                d.Title,
				Tags:                 d.Tags,
				Prompt:               d.Prompt,
				ModelName:            d.ModelName,
				Duration:             float64(d.Duration),
				CreateTime:           string(d.CreateTime),
			})
		}
		o.payload = tracks
	}
	return v.resolve(taskID, o)
}
