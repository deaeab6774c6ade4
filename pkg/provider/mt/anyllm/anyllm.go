// Package anyllm provides a universal LLM-backed translation provider built
// on github.com/mozilla-ai/any-llm-go, a unified multi-provider interface
// that supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq,
// and more. It implements the mt.Provider interface.
//
// Usage:
//
//	p, err := anyllm.New("ollama", "qwen2.5:7b", nil, anyllm.WithPairs([]string{"es-en", "en-es"}))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/lingostream/lingostream/pkg/provider/mt"
)

// Compile-time assertion that Provider satisfies mt.Provider.
var _ mt.Provider = (*Provider)(nil)

// Provider implements mt.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
	pairs   mt.PairSet
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithPairs restricts translation to the given "src-tgt" pairs. Calls for
// other pairs pass the source text through unchanged. An empty list means
// all pairs are attempted.
func WithPairs(pairs []string) Option {
	return func(p *Provider) { p.pairs = mt.NewPairSet(pairs) }
}

// New creates a Provider backed by the named LLM provider.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral", "groq", "llamacpp". model is the model to use (e.g.
// "gpt-4o-mini", "qwen2.5:7b"). libOpts are any-llm-go options such as
// anyllmlib.WithAPIKey; without an API key option the backend falls back to
// its usual environment variable.
func New(providerName, model string, libOpts []anyllmlib.Option, opts ...Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, libOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	p := &Provider{backend: backend, model: model}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral, groq, llamacpp", providerName)
	}
}

// Translate implements mt.Provider. It issues a single non-streaming
// completion asking for the bare translation.
func (p *Provider) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if !p.pairs.Supports(src, tgt) {
		return text, nil
	}

	params := anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt(src, tgt)},
			{Role: anyllmlib.RoleUser, Content: text},
		},
	}
	temp := 0.0
	params.Temperature = &temp

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	if out == "" {
		return text, nil
	}
	return out, nil
}

// systemPrompt builds the translation instruction. The model is told to
// emit only the translation so the output can be piped straight to TTS.
func systemPrompt(src, tgt string) string {
	return fmt.Sprintf(
		"You are a translation engine. Translate the user's text from %s to %s. "+
			"Output only the translation — no explanations, no quotes, no language tags. "+
			"The input is a fragment of live speech; preserve its register and keep it fragment-shaped.",
		src, tgt,
	)
}
