// Package audio provides the PCM primitives shared by the streaming
// translation pipeline: a sliding-window ring buffer of float32 samples,
// PCM16 ⇄ float32 conversion, and signal-energy helpers.
//
// The ring buffer is the only piece of state shared between the transport
// goroutine (which appends incoming microphone audio) and the orchestrator
// goroutine (which reads windowed snapshots for ASR). All operations hold a
// short mutex; readers always copy out and never retain a view into the ring.
package audio

import (
	"sync"
)

// Ring is a fixed-capacity circular buffer of float32 PCM samples.
//
// It tracks a monotonically increasing write position that counts every
// sample ever appended — only the physical indices wrap. The number of
// samples actually present is min(writePos, capacity); older samples are
// overwritten silently.
//
// All methods are safe for concurrent use.
type Ring struct {
	mu         sync.Mutex
	buf        []float32
	writePos   int64 // total samples written; never wraps
	sampleRate int
}

// NewRing creates a ring that retains the most recent maxDuration seconds of
// audio at the given sample rate. maxDuration values smaller than one sample
// are rounded up to a single-sample buffer.
func NewRing(maxDurationSec float64, sampleRate int) *Ring {
	n := int(maxDurationSec * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	return &Ring{
		buf:        make([]float32, n),
		sampleRate: sampleRate,
	}
}

// SampleRate returns the sample rate the ring was created with.
func (r *Ring) SampleRate() int { return r.sampleRate }

// Capacity returns the maximum number of samples the ring retains.
func (r *Ring) Capacity() int { return len(r.buf) }

// Append adds samples to the ring, overwriting the oldest audio when full.
// If len(samples) >= capacity only the trailing capacity samples are kept,
// but the write position still advances by the full input length.
func (r *Ring) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(samples)
	size := len(r.buf)

	if n >= size {
		r.writePos += int64(n)
		start := int(r.writePos % int64(size))
		tail := samples[n-size:]
		copy(r.buf[start:], tail[:size-start])
		copy(r.buf[:start], tail[size-start:])
		return
	}

	start := int(r.writePos % int64(size))
	end := start + n
	if end <= size {
		copy(r.buf[start:end], samples)
	} else {
		first := size - start
		copy(r.buf[start:], samples[:first])
		copy(r.buf[:n-first], samples[first:])
	}
	r.writePos += int64(n)
}

// AppendPCM16 decodes little-endian signed 16-bit PCM bytes to normalised
// float32 samples and appends them. A trailing odd byte is ignored.
func (r *Ring) AppendPCM16(pcm []byte) {
	r.Append(PCM16ToFloat32(pcm))
}

// Last returns a copy of the most recent duration seconds of audio in
// chronological order. The returned slice holds
// min(⌊duration·rate⌋, capacity, total written) samples. ok is false when
// nothing has been written yet.
func (r *Ring) Last(durationSec float64) (samples []float32, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writePos == 0 {
		return nil, false
	}

	size := len(r.buf)
	want := int64(durationSec * float64(r.sampleRate))
	if want > r.writePos {
		want = r.writePos
	}
	if want > int64(size) {
		want = int64(size)
	}
	if want <= 0 {
		return []float32{}, true
	}

	n := int(want)
	out := make([]float32, n)
	end := int(r.writePos % int64(size))
	start := end - n
	if start >= 0 {
		copy(out, r.buf[start:end])
	} else {
		copy(out, r.buf[size+start:])
		copy(out[-start:], r.buf[:end])
	}
	return out, true
}

// Reset zero-fills the buffer and resets the write position.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.writePos = 0
}

// TotalSamplesWritten returns the monotonic count of samples ever appended,
// including those already overwritten.
func (r *Ring) TotalSamplesWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writePos
}

// DurationAvailable returns the seconds of audio currently present.
func (r *Ring) DurationAvailable() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	present := r.writePos
	if present > int64(len(r.buf)) {
		present = int64(len(r.buf))
	}
	return float64(present) / float64(r.sampleRate)
}
