// Package coqui provides a TTS provider backed by a locally running Coqui
// TTS server via its REST API. It implements the tts.Provider interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis via GET /api/tts with URL query
//     parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis via
//     POST /tts_to_audio/ with a JSON body.
//
// Both servers return a WAV file per request. The provider strips the RIFF
// header, resamples the PCM to the configured output rate when needed, and
// emits it in fixed-size chunks on the returned channel.
package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lingostream/lingostream/pkg/audio"
	"github.com/lingostream/lingostream/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultTimeout    = 30 * time.Second
	defaultOutputRate = 24000

	ttsEndpoint    = "/tts_to_audio/"
	apiTTSEndpoint = "/api/tts"

	// pcmChunkSize is the size of each PCM chunk emitted on the audio
	// channel: 200 ms at 24 kHz mono PCM16.
	pcmChunkSize = 9600

	// audioChanBuf is the buffer depth of the returned audio channel.
	audioChanBuf = 64
)

// APIMode selects which Coqui server API the provider targets.
type APIMode string

const (
	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	APIModeStandard APIMode = "standard"

	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithAPIMode sets the server API mode. Defaults to APIModeStandard.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) { p.apiMode = mode }
}

// WithOutputSampleRate sets the sample rate the provider emits. Mono WAV
// responses at other rates are linearly resampled; multi-channel responses
// are passed through at their own rate. Defaults to 24000.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) { p.outputRate = rate }
}

// WithSpeaker sets the speaker id sent for multi-speaker models (standard
// mode) or the speaker reference (XTTS mode).
func WithSpeaker(id string) Option {
	return func(p *Provider) { p.speaker = id }
}

// Provider implements tts.Provider backed by a Coqui TTS server. It is safe
// for concurrent use; multiple SynthesizeStream calls may run in parallel.
type Provider struct {
	serverURL  string
	apiMode    APIMode
	speaker    string
	outputRate int
	httpClient *http.Client
}

// New creates a Provider targeting the TTS server at serverURL (e.g.
// "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		apiMode:    APIModeStandard,
		outputRate: defaultOutputRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int { return p.outputRate }

// ttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav,omitempty"`
	Language   string `json:"language"`
}

// SynthesizeStream issues one HTTP synthesis request for text and streams
// the resulting PCM in fixed-size chunks on the returned channel. Empty or
// whitespace-only text yields an immediately-closed channel.
func (p *Provider) SynthesizeStream(ctx context.Context, text, lang string) (<-chan []byte, error) {
	audioCh := make(chan []byte, audioChanBuf)

	if strings.TrimSpace(text) == "" {
		close(audioCh)
		return audioCh, nil
	}

	go func() {
		defer close(audioCh)

		pcm, err := p.synthesize(ctx, text, lang)
		if err != nil {
			// Mid-stream errors close the channel early; the caller treats
			// an empty stream as nothing to speak.
			return
		}
		for len(pcm) > 0 {
			end := min(pcmChunkSize, len(pcm))
			select {
			case audioCh <- pcm[:end]:
			case <-ctx.Done():
				return
			}
			pcm = pcm[end:]
		}
	}()

	return audioCh, nil
}

// synthesize dispatches to the mode-specific implementation and returns the
// decoded PCM16. Mono audio is resampled to the output rate; multi-channel
// audio is returned as decoded, neither downmixed nor resampled.
func (p *Provider) synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	var wav []byte
	var err error
	if p.apiMode == APIModeXTTS {
		wav, err = p.synthesizeXTTS(ctx, text, lang)
	} else {
		wav, err = p.synthesizeStandard(ctx, text, lang)
	}
	if err != nil {
		return nil, err
	}

	pcm, rate, channels, err := decodeWAV(wav)
	if err != nil {
		return nil, err
	}
	if rate != p.outputRate && channels == 1 {
		pcm = audio.ResampleMono16(pcm, rate, p.outputRate)
	}
	return pcm, nil
}

// synthesizeXTTS performs a single POST /tts_to_audio/ call and returns the
// raw WAV response.
func (p *Provider) synthesizeXTTS(ctx context.Context, text, lang string) ([]byte, error) {
	body := ttsRequest{
		Text:       text,
		SpeakerWav: p.speaker,
		Language:   lang,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	return p.doRequest(req, ttsEndpoint)
}

// synthesizeStandard performs a single GET /api/tts request using URL query
// parameters and returns the raw WAV response.
func (p *Provider) synthesizeStandard(ctx context.Context, text, lang string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if lang != "" {
		params.Set("language_id", lang)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	return p.doRequest(req, apiTTSEndpoint)
}

// doRequest executes req and returns the response body.
func (p *Provider) doRequest(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d", req.Method, endpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

// decodeWAV pulls the raw PCM payload and its format out of a RIFF/WAVE
// response body. Only the fmt and data chunks are inspected; anything else
// the server tacks on (LIST, fact, …) is skipped over. If the fmt chunk is
// absent or trails the data chunk, the Coqui default of 22050 Hz mono is
// assumed.
func decodeWAV(wav []byte) (pcm []byte, sampleRate, channels int, err error) {
	const riffHeaderLen = 12
	if len(wav) < riffHeaderLen || string(wav[:4]) != "RIFF" || string(wav[8:riffHeaderLen]) != "WAVE" {
		return nil, 0, 0, errors.New("coqui: response body is not a RIFF/WAVE file")
	}

	sampleRate, channels = 22050, 1
	cursor := riffHeaderLen
	for cursor+8 <= len(wav) {
		id := string(wav[cursor : cursor+4])
		size := int(binary.LittleEndian.Uint32(wav[cursor+4 : cursor+8]))
		body := wav[cursor+8:]

		switch {
		case id == "data":
			if size > len(body) {
				// Truncated download; keep what arrived.
				size = len(body)
			}
			return body[:size], sampleRate, channels, nil
		case id == "fmt " && size >= 16 && len(body) >= 16:
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
		}

		// Chunks are word-aligned, so odd sizes carry a pad byte.
		cursor += 8 + size + size%2
	}

	return nil, 0, 0, errors.New("coqui: no audio payload in WAV response")
}
