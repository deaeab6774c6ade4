// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API. It implements the tts.Provider
// interface.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/lingostream/lingostream/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

const (
	wsEndpointFmt = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	defaultModel  = "eleven_flash_v2_5"
	defaultRate   = 24000

	// audioChanBuf is the buffer depth of the returned audio channel.
	audioChanBuf = 64
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g. "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputSampleRate selects the PCM output rate. ElevenLabs supports
// 16000, 22050, 24000, and 44100. Defaults to 24000.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) { p.outputRate = rate }
}

// WithBaseURL overrides the WebSocket endpoint format string. Primarily
// used in tests to point at a local mock server; the string must contain
// two %s verbs (voice id, model id).
func WithBaseURL(format string) Option {
	return func(p *Provider) { p.endpointFmt = format }
}

// WithVoice maps a language code to an ElevenLabs voice id. May be given
// multiple times; synthesis for an unmapped language uses defaultVoice.
func WithVoice(lang, voiceID string) Option {
	return func(p *Provider) { p.voices[lang] = voiceID }
}

// WithDefaultVoice sets the voice used for languages without an explicit
// mapping.
func WithDefaultVoice(voiceID string) Option {
	return func(p *Provider) { p.defaultVoice = voiceID }
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputRate   int
	endpointFmt  string
	voices       map[string]string
	defaultVoice string
}

// New creates a new ElevenLabs Provider. apiKey and defaultVoice must be
// non-empty.
func New(apiKey, defaultVoice string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if defaultVoice == "" {
		return nil, errors.New("elevenlabs: defaultVoice must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputRate:   defaultRate,
		endpointFmt:  wsEndpointFmt,
		voices:       map[string]string{},
		defaultVoice: defaultVoice,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int { return p.outputRate }

// ── WebSocket message types ──────────────────────────────────────────────────

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// boiMessage is the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// textMessage is the JSON payload for a text fragment.
type textMessage struct {
	Text string `json:"text"`
	// TryTriggerGeneration asks the server to start synthesising without
	// waiting for more input — right for one-shot segment synthesis.
	TryTriggerGeneration bool `json:"try_trigger_generation"`
}

// eoiMessage is the end-of-input marker (an empty text value).
type eoiMessage struct {
	Text string `json:"text"`
}

// audioResponse is a server message carrying base64 PCM or an error note.
type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// SynthesizeStream opens a WebSocket to ElevenLabs, sends text as a single
// fragment followed by end-of-input, and returns a channel emitting the
// decoded PCM16 chunks as the server produces them.
func (p *Provider) SynthesizeStream(ctx context.Context, text, lang string) (<-chan []byte, error) {
	audioCh := make(chan []byte, audioChanBuf)
	if strings.TrimSpace(text) == "" {
		close(audioCh)
		return audioCh, nil
	}

	voice := p.voices[lang]
	if voice == "" {
		voice = p.defaultVoice
	}

	wsURL := fmt.Sprintf(p.endpointFmt, voice, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	// BOI handshake: authenticate and pick the PCM output format.
	boi := boiMessage{
		Text: " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		XiAPIKey:     p.apiKey,
		OutputFormat: "pcm_" + strconv.Itoa(p.outputRate),
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	go func() {
		defer close(audioCh)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		if err := writeJSON(ctx, conn, textMessage{Text: text + " ", TryTriggerGeneration: true}); err != nil {
			slog.Warn("elevenlabs: send text failed", "error", err)
			return
		}
		if err := writeJSON(ctx, conn, eoiMessage{}); err != nil {
			slog.Warn("elevenlabs: send EOI failed", "error", err)
			return
		}

		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var resp audioResponse
			if err := json.Unmarshal(msg, &resp); err != nil {
				slog.Warn("elevenlabs: bad server message", "error", err)
				continue
			}
			if resp.Message != "" {
				slog.Warn("elevenlabs: server message", "message", resp.Message)
			}
			if resp.Audio != "" {
				pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
				if err != nil {
					slog.Warn("elevenlabs: bad audio payload", "error", err)
					continue
				}
				select {
				case audioCh <- pcm:
				case <-ctx.Done():
					return
				}
			}
			if resp.IsFinal {
				return
			}
		}
	}()

	return audioCh, nil
}

// writeJSON marshals v and writes it as a text frame.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
