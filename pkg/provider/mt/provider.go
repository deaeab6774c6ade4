// Package mt defines the Provider interface for machine-translation
// backends.
//
// Translation is a single-shot text-in/text-out call per committed segment.
// Providers are best-effort: a language pair the backend does not support
// must return the source text unchanged rather than an error, so the
// pipeline can keep emitting translation events.
//
// Implementations must be safe for concurrent use.
package mt

import "context"

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate converts text from src to tgt (ISO-639-1 codes). Empty or
	// whitespace-only input returns "". An unsupported language pair
	// returns the input text unchanged. Errors are reserved for backend
	// failures (network, API); the caller logs and passes the source text
	// through.
	Translate(ctx context.Context, text, src, tgt string) (string, error)
}

// PairSet is a set of supported "src-tgt" language pairs shared by the
// LLM-backed providers.
type PairSet map[string]struct{}

// NewPairSet builds a PairSet from "src-tgt" strings. A nil or empty input
// yields a nil set, which means "all pairs supported".
func NewPairSet(pairs []string) PairSet {
	if len(pairs) == 0 {
		return nil
	}
	s := make(PairSet, len(pairs))
	for _, p := range pairs {
		s[p] = struct{}{}
	}
	return s
}

// Supports reports whether the src→tgt pair is in the set. A nil set
// supports everything.
func (s PairSet) Supports(src, tgt string) bool {
	if s == nil {
		return true
	}
	_, ok := s[src+"-"+tgt]
	return ok
}
