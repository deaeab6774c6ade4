// Package whisper implements asr.Provider using the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once at construction and shared across all sessions;
// each Transcribe call creates a fresh whisper context (contexts are not
// thread-safe, the model is).
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/lingostream/lingostream/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

const (
	defaultLanguage = "es"

	// minWindowSamples is half a second at 16 kHz; shorter windows produce
	// nothing but hallucinations.
	minWindowSamples = 8000
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default ISO-639-1 language used when Transcribe is
// called with an empty lang. Defaults to "es".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements asr.Provider backed by a whisper.cpp model.
type Provider struct {
	model    whisperlib.Model
	language string
}

// New loads the whisper.cpp model from modelPath. The caller must call
// Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over the sample window and returns
// the concatenated segment text. Windows shorter than half a second return
// "" immediately. contextHint, when non-empty, is passed as the initial
// prompt to bias decoding toward the committed transcript tail.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, lang string, contextHint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(samples) < minWindowSamples {
		return "", nil
	}
	if lang == "" {
		lang = p.language
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if contextHint != "" {
		wctx.SetInitialPrompt(contextHint)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
