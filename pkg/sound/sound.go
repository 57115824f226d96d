package sound

import (
	"bytes"
	"fmt"
	"os"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

type Info struct {
	SampleRate int
	Duration   time.Duration
}

// Probe decodes the mp3 file at path and returns its length.
func Probe(path string) (*Info, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't read file: %w", err)
	}
	decoder, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}
	rate := decoder.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("sound: invalid sample rate %d", rate)
	}
	// 4 bytes per frame for 16-bit stereo audio
	samples := decoder.Length() / 4
	return &Info{
		SampleRate: rate,
		Duration:   time.Duration(float64(samples) / float64(rate) * float64(time.Second)),
	}, nil
}
