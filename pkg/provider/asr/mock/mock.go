// Package mock provides a scripted asr.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/lingostream/lingostream/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Call records the arguments of one Transcribe invocation.
type Call struct {
	SampleCount int
	Lang        string
	ContextHint string
}

// Provider is a scripted ASR mock. Each Transcribe call returns the next
// entry from Hypotheses (repeating the last one when exhausted), or Err if
// set. Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Hypotheses are returned in order; the last entry repeats.
	Hypotheses []string

	// Err, when non-nil, is returned by every call.
	Err error

	calls []Call
	next  int
}

// Transcribe implements asr.Provider.
func (p *Provider) Transcribe(_ context.Context, samples []float32, lang string, contextHint string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{SampleCount: len(samples), Lang: lang, ContextHint: contextHint})
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Hypotheses) == 0 {
		return "", nil
	}
	h := p.Hypotheses[min(p.next, len(p.Hypotheses)-1)]
	p.next++
	return h, nil
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
