package status

import (
	"encoding/json"

	"github.com/igolaizola/tunepoll/pkg/task"
)

// mediaRecord is the record of the single file conversions (wav and mp4).
type mediaRecord struct {
	TaskID       string `json:"taskId"`
	MusicID      string `json:"musicId"`
	CompleteTime text   `json:"completeTime"`
	CreateTime   text   `json:"createTime"`
	Response     *struct {
		AudioWavURL string `json:"audioWavUrl"`
		VideoURL    string `json:"videoUrl"`
	} `json:"response"`
}

func (r *mediaRecord) createdAt() string {
	return firstNonEmpty(string(r.CompleteTime), string(r.CreateTime))
}

var wavVocabulary = vocabulary{
	kind: task.Wav,
	states: map[string]task.State{
		"PENDING":             task.Pending,
		"SUCCESS":             task.Succeeded,
		"CREATE_TASK_FAILED":  task.Failed,
		"GENERATE_WAV_FAILED": task.Failed,
		"CALLBACK_EXCEPTION":  task.Failed,
	},
}

func mapWav(taskID string, raw []byte) Outcome {
	h, ok := decodeHeader(raw)
	if !ok {
		return undecodable(taskID)
	}
	o := h.observe(text(firstNonEmpty(string(h.Status), string(h.SuccessFlag))))
	var r mediaRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return wavVocabulary.resolve(taskID, o)
	}
	if r.Response != nil && r.Response.AudioWavURL != "" {
		o.ready = true
		o.payload = &task.WavFile{
			WavURL:          r.Response.AudioWavURL,
			OriginalAudioID: r.MusicID,
			CreatedAt:       r.createdAt(),
		}
	}
	return wavVocabulary.resolve(taskID, o)
}

var mp4Vocabulary = vocabulary{
	kind: task.Mp4,
	states: map[string]task.State{
		"PENDING":             task.Pending,
		"SUCCESS":             task.Succeeded,
		"CREATE_TASK_FAILED":  task.Failed,
		"GENERATE_MP4_FAILED": task.Failed,
		"CALLBACK_EXCEPTION":  task.Failed,
	},
}

func mapMp4(taskID string, raw []byte) Outcome {
	h, ok := decodeHeader(raw)
	if !ok {
		return undecodable(taskID)
	}
	o := h.observe(text(firstNonEmpty(string(h.SuccessFlag), string(h.Status))))
	var r mediaRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return mp4Vocabulary.resolve(taskID, o)
	}
	if r.Response != nil && r.Response.VideoURL != "" {
		o.ready = true
		o.payload = &task.VideoFile{
			VideoURL:        r.Response.VideoURL,
			OriginalAudioID: r.MusicID,
			CreatedAt:       r.createdAt(),
		}
	}
	return mp4Vocabulary.resolve(taskID, o)
}
