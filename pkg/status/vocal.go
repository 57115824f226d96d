package status

import (
	"encoding/json"

	"github.com/igolaizola/tunepoll/pkg/task"
)

type vocalRecord struct {
	TaskID       string `json:"taskId"`
	MusicID      string `json:"musicId"`
	CompleteTime text   `json:"completeTime"`
	CreateTime   text   `json:"createTime"`
	Response     *struct {
		OriginURL       string `json:"originUrl"`
		InstrumentalURL string `json:"instrumentalUrl"`
		VocalURL        string `json:"vocalUrl"`
	} `json:"response"`
}

// The provider is inconsistent with the case of vocal removal flags.
var vocalVocabulary = vocabulary{
	kind:     task.VocalRemoval,
	foldCase: true,
	states: map[string]task.State{
		"PENDING":               task.Pending,
		"SUCCESS":               task.Succeeded,
		"CREATE_TASK_FAILED":    task.Failed,
		"GENERATE_AUDIO_FAILED": task.Failed,
		"CALLBACK_EXCEPTION":    task.Failed,
	},
}

func mapVocalRemoval(taskID string, raw []byte) Outcome {
	h, ok := decodeHeader(raw)
	if !ok {
		return undecodable(taskID)
	}
	o := h.observe(text(firstNonEmpty(string(h.SuccessFlag), string(h.Status))))
	var r vocalRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return vocalVocabulary.resolve(taskID, o)
	}
	if resp := r.Response; resp != nil {
		if resp.InstrumentalURL != "" || resp.VocalURL != "" {
			o.ready = true
			o.payload = &task.Stems{
				OriginURL:       resp.OriginURL,
				InstrumentalURL: resp.InstrumentalURL,
				VocalURL:        resp.VocalURL,
				OriginalAudioID: r.MusicID,
				CreatedAt:       firstNonEmpty(string(r.CompleteTime), string(r.CreateTime)),
			}
		}
	}
	return vocalVocabulary.resolve(taskID, o)
}
