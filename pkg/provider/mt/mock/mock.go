// Package mock provides a deterministic mt.Provider for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/lingostream/lingostream/pkg/provider/mt"
)

// Compile-time assertion that Provider satisfies mt.Provider.
var _ mt.Provider = (*Provider)(nil)

// Call records the arguments of one Translate invocation.
type Call struct {
	Text string
	Src  string
	Tgt  string
}

// Provider is a deterministic translation mock. By default it returns
// "<tgt>:<text>" so tests can assert both the routing and the payload.
// Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Translations overrides specific inputs; missing keys fall back to
	// the default "<tgt>:<text>" transform.
	Translations map[string]string

	// Err, when non-nil, is returned by every call.
	Err error

	calls []Call
}

// Translate implements mt.Provider.
func (p *Provider) Translate(_ context.Context, text, src, tgt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Text: text, Src: src, Tgt: tgt})
	if p.Err != nil {
		return "", p.Err
	}
	if out, ok := p.Translations[text]; ok {
		return out, nil
	}
	return fmt.Sprintf("%s:%s", tgt, text), nil
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}
