package whisper

import (
	"context"
	"testing"
)

func TestNewRejectsEmptyModelPath(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestTranscribeShortWindow(t *testing.T) {
	t.Parallel()

	// Windows under half a second return before the model is touched, so a
	// provider without a loaded model is safe here.
	p := &Provider{language: "es"}

	got, err := p.Transcribe(context.Background(), make([]float32, minWindowSamples-1), "es", "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "" {
		t.Fatalf("short window must return empty, got %q", got)
	}
}

func TestTranscribeCancelledContext(t *testing.T) {
	t.Parallel()

	p := &Provider{language: "es"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Transcribe(ctx, make([]float32, minWindowSamples), "es", ""); err == nil {
		t.Fatal("expected context error")
	}
}
