// Package openai provides a translation provider backed by the OpenAI Chat
// Completions API. It implements the mt.Provider interface.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/lingostream/lingostream/pkg/provider/mt"
)

// Compile-time assertion that Provider satisfies mt.Provider.
var _ mt.Provider = (*Provider)(nil)

const defaultModel = "gpt-4o-mini"

// Provider implements mt.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	pairs  mt.PairSet
}

// config holds optional configuration for the provider.
type config struct {
	model   string
	baseURL string
	timeout time.Duration
	pairs   []string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel selects the chat model. Defaults to "gpt-4o-mini".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL. Primarily used in
// tests to point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithPairs restricts translation to the given "src-tgt" pairs; other pairs
// pass the source text through unchanged.
func WithPairs(pairs []string) Option {
	return func(c *config) { c.pairs = pairs }
}

// New constructs a new OpenAI translation Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		pairs:  mt.NewPairSet(cfg.pairs),
	}, nil
}

// Translate implements mt.Provider.
func (p *Provider) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if !p.pairs.Supports(src, tgt) {
		return text, nil
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt(src, tgt)),
			oai.UserMessage(text),
		},
		Temperature: param.NewOpt(0.0),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return text, nil
	}
	return out, nil
}

// systemPrompt builds the translation instruction shared with the anyllm
// backend: bare output only, suitable for direct TTS.
func systemPrompt(src, tgt string) string {
	return fmt.Sprintf(
		"You are a translation engine. Translate the user's text from %s to %s. "+
			"Output only the translation — no explanations, no quotes, no language tags. "+
			"The input is a fragment of live speech; preserve its register and keep it fragment-shaped.",
		src, tgt,
	)
}
