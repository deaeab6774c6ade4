package anyllm

import (
	"context"
	"strings"
	"testing"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "model", nil); err == nil {
		t.Fatal("expected error for empty provider name")
	}
	if _, err := New("ollama", "", nil); err == nil {
		t.Fatal("expected error for empty model")
	}
	if _, err := New("clippy", "model", nil); err == nil {
		t.Fatal("expected error for unsupported provider name")
	}
}

func TestTranslateShortCircuits(t *testing.T) {
	t.Parallel()

	// Ollama's constructor does not dial; Translate must never reach the
	// backend for these inputs.
	p, err := New("ollama", "qwen2.5:7b", nil, WithPairs([]string{"es-en"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Run("blank input", func(t *testing.T) {
		t.Parallel()
		got, err := p.Translate(context.Background(), "   ", "es", "en")
		if err != nil {
			t.Fatalf("Translate: %v", err)
		}
		if got != "" {
			t.Fatalf("want empty, got %q", got)
		}
	})

	t.Run("unsupported pair passes through", func(t *testing.T) {
		t.Parallel()
		got, err := p.Translate(context.Background(), "bonjour", "fr", "de")
		if err != nil {
			t.Fatalf("Translate: %v", err)
		}
		if got != "bonjour" {
			t.Fatalf("want pass-through, got %q", got)
		}
	})
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	got := systemPrompt("es", "en")
	for _, want := range []string{"from es to en", "Output only the translation"} {
		if !strings.Contains(got, want) {
			t.Fatalf("system prompt missing %q: %s", want, got)
		}
	}
}
