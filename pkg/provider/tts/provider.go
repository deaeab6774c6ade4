// Package tts defines the Provider interface for text-to-speech backends.
//
// Synthesis is streaming on the output side only: the input is one complete
// committed (and translated) segment, and the output is a finite sequence of
// raw PCM16 chunks delivered over a channel as they become available. Chunk
// granularity is a backend concern; consumers only rely on the channel being
// closed after the final chunk.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream synthesises text in the given ISO-639-1 language and
	// returns a channel emitting mono little-endian PCM16 chunks at
	// [Provider.SampleRate]. The channel is closed by the implementation
	// when synthesis completes or ctx is cancelled; the caller must drain
	// it. A channel that closes without emitting anything means "nothing to
	// speak" and is not an error.
	//
	// A non-nil error is returned only when the stream cannot be started.
	// Mid-stream failures are signalled by closing the channel early.
	SynthesizeStream(ctx context.Context, text, lang string) (<-chan []byte, error)

	// SampleRate returns the sample rate in Hz of the emitted PCM.
	SampleRate() int
}
