package task

import (
	"encoding/json"
	"fmt"
)

// Result is the normalized payload of a task. The set of implementations is
// closed: Tracks, LyricList, *Stems, *WavFile and *VideoFile.
type Result interface {
	isResult()
}

// Track is one audio variant produced by a music or extend task.
type Track struct {
	ID                   string  `json:"id"`
	AudioURL             string  `json:"audioUrl"`
	StreamAudioURL       string  `json:"streamAudioUrl"`
	SourceAudioURL       string  `json:"sourceAudioUrl"`
	SourceStreamAudioURL string  `json:"sourceStreamAudioUrl,omitempty"`
	ImageURL             string  `json:"imageUrl,omitempty"`
	Title                string  `json:"title,omitempty"`
	Tags                 string  `json:"tags,omitempty"`
	Prompt               string  `json:"prompt,omitempty"`
	ModelName            string  `json:"modelName,omitempty"`
	Duration             float64 `json:"duration,omitempty"`
	CreateTime           string  `json:"createTime,omitempty"`
}

type Tracks []Track

// Lyric is one lyrics variant.
type Lyric struct {
	Text         string `json:"text"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type LyricList []Lyric

// Stems are the separated tracks of a vocal removal task.
type Stems struct {
	OriginURL       string `json:"originUrl,omitempty"`
	InstrumentalURL string `json:"instrumentalUrl,omitempty"`
	VocalURL        string `json:"vocalUrl,omitempty"`
	OriginalAudioID string `json:"originalAudioId,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

type WavFile struct {
	WavURL          string `json:"wavUrl"`
	OriginalAudioID string `json:"originalAudioId"`
	CreatedAt       string `json:"createdAt"`
}

type VideoFile struct {
	VideoURL        string `json:"videoUrl"`
	OriginalAudioID string `json:"originalAudioId"`
	CreatedAt       string `json:"createdAt"`
}

func (Tracks) isResult()     {}
func (LyricList) isResult()  {}
func (*Stems) isResult()     {}
func (*WavFile) isResult()   {}
func (*VideoFile) isResult() {}

// URLs returns the downloadable files of a result keyed by a short name
// with its file extension.
func URLs(r Result) map[string]string {
	out := map[string]string{}
	switch v := r.(type) {
	case Tracks:
		for i, t := range v {
			if t.AudioURL != "" {
				out[fmt.Sprintf("%d.mp3", i)] = t.AudioURL
			}
			if t.ImageURL != "" {
				out[fmt.Sprintf("%d.jpg", i)] = t.ImageURL
			}
		}
	case *Stems:
		if v.InstrumentalURL != "" {
			out["instrumental.mp3"] = v.InstrumentalURL
		}
		if v.VocalURL != "" {
			out["vocal.mp3"] = v.VocalURL
		}
	case *WavFile:
		if v.WavURL != "" {
			out["audio.wav"] = v.WavURL
		}
	case *VideoFile:
		if v.VideoURL != "" {
			out["video.mp4"] = v.VideoURL
		}
	}
	return out
}

// DecodeResult restores the result variant of the given kind from its JSON
// form. Empty input and null decode to a nil result.
func DecodeResult(kind Kind, b []byte) (Result, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var r Result
	switch kind {
	case Music, Extend:
		var v Tracks
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("task: couldn't decode %s result: %w", kind, err)
		}
		r = v
	case Lyrics:
		var v LyricList
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("task: couldn't decode %s result: %w", kind, err)
		}
		r = v
	case VocalRemoval:
		var v Stems
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("task: couldn't decode %s result: %w", kind, err)
		}
		r = &v
	case Wav:
		var v WavFile
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("task: couldn't decode %s result: %w", kind, err)
		}
		r = &v
	case Mp4:
		var v VideoFile
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("task: couldn't decode %s result: %w", kind, err)
		}
		r = &v
	default:
		return nil, fmt.Errorf("task: unknown kind %q", kind)
	}
	return r, nil
}
