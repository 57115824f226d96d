package status

import (
	"encoding/json"

	"github.com/igolaizola/tunepoll/pkg/task"
)

type lyricsRecord struct {
	TaskID   string `json:"taskId"`
	Type     string `json:"type"`
	Response *struct {
		TaskID string `json:"taskId"`
		Data   []struct {
			Text         string `json:"text"`
			Title        string `json:"title"`
			Status       string `json:"status"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"data"`
	} `json:"response"`
}

var lyricsVocabulary = vocabulary{
	kind: task.Lyrics,
	states: map[string]task.State{
		"PENDING":                task.Pending,
		"SUCCESS":                task.Succeeded,
		"CREATE_TASK_FAILED":     task.Failed,
		"GENERATE_LYRICS_FAILED": task.Failed,
		"CALLBACK_EXCEPTION":     task.Failed,
		"SENSITIVE_WORD_ERROR":   task.Failed,
	},
}

func mapLyrics(taskID string, raw []byte) Outcome {
	h, ok := decodeHeader(raw)
	if !ok {
		return undecodable(taskID)
	}
	o := h.observe(h.Status)
	var r lyricsRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return lyricsVocabulary.resolve(taskID, o)
	}
	if r.Response != nil && len(r.Response.Data) > 0 {
		var lyrics task.LyricList
		for _, d := range r.Response.Data {
			if d.Text != "" {
				o.ready = true
			}
			lyrics = append(lyrics, task.Lyric{
				Text:         d.Text,
				Title:        d.Title,
				Status:       d.Status,
				ErrorMessage: d.ErrorMessage,
			})
		}
		o.payload = lyrics
	}
	return lyricsVocabulary.resolve(taskID, o)
}
