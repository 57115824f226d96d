package s3

import (
	"context"
	"errors"
	"testing"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"t1/0.mp3", "audio/mpeg"},
		{"t1/audio.wav", "audio/wav"},
		{"t1/video.MP4", "video/mp4"},
		{"t1/0.jpg", "image/jpeg"},
		{"t1/result.json", "application/json"},
	}
	for _, tt := range tests {
		got, err := ContentType(tt.name)
		if err != nil {
			t.Fatalf("ContentType(%s) err = %v; want nil", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("ContentType(%s) = %s; want %s", tt.name, got, tt.want)
		}
	}
	if _, err := ContentType("t1/notes.txt"); err == nil {
		t.Fatalf("ContentType(txt) err = nil; want error")
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := retry(context.Background(), false, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("retry() = %v after %d calls; want nil after 1", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = retry(ctx, false, func() error {
		calls++
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("retry() = %v after %d calls; want context.Canceled after 1", err, calls)
	}
}
