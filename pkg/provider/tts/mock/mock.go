// Package mock provides a scripted tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/lingostream/lingostream/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Call records the arguments of one SynthesizeStream invocation.
type Call struct {
	Text string
	Lang string
}

// Provider is a scripted TTS mock that emits ChunksPerCall fixed-size PCM
// chunks per synthesis. Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// ChunksPerCall is how many chunks each synthesis emits. Defaults to 2
	// when zero. Set to -1 to emit none (empty stream).
	ChunksPerCall int

	// ChunkSize is the byte size of each emitted chunk. Defaults to 640.
	ChunkSize int

	// Rate is the reported sample rate. Defaults to 24000.
	Rate int

	// Block, when non-nil, is received from before each synthesis finishes;
	// tests use it to hold TTS jobs open and drive backpressure.
	Block chan struct{}

	// Err, when non-nil, is returned by every call.
	Err error

	calls []Call
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text, lang string) (<-chan []byte, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Text: text, Lang: lang})
	n := p.ChunksPerCall
	size := p.ChunkSize
	block := p.Block
	err := p.Err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if n == 0 {
		n = 2
	}
	if size == 0 {
		size = 640
	}

	ch := make(chan []byte, n+1)
	go func() {
		defer close(ch)
		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return
			}
		}
		for i := 0; i < n; i++ {
			select {
			case ch <- make([]byte, size):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Rate == 0 {
		return 24000
	}
	return p.Rate
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of syntheses so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
