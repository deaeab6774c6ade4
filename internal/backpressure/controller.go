// Package backpressure adapts the pipeline's TTS output to downstream
// slowness. When synthesis falls behind the commit stream, the controller
// first merges commits into larger batches, then skips synthesis entirely.
// Committed text is never dropped — transcript and translation events keep
// flowing; only the audio leg degrades.
package backpressure

import (
	"log/slog"
	"strings"
	"sync"
)

// DefaultQueueMax is the default pending-TTS-job threshold for batch mode.
// Skip mode engages at twice this value.
const DefaultQueueMax = 5

// Controller tracks the number of outstanding TTS jobs and derives the
// current degradation mode from two thresholds:
//
//	pending > 2·queueMax → skip mode (commits bypass TTS entirely)
//	pending > queueMax   → batch mode (commit text accumulates, spoken later)
//	pending ≤ queueMax   → both modes clear
//
// All methods are safe for concurrent use, though in practice only the
// orchestrator goroutine touches a given instance.
type Controller struct {
	mu        sync.Mutex
	queueMax  int
	pending   int
	batchMode bool
	skipTTS   bool
	batch     []string
}

// NewController creates a controller with the given batch threshold.
// queueMax values below 1 fall back to [DefaultQueueMax].
func NewController(queueMax int) *Controller {
	if queueMax < 1 {
		queueMax = DefaultQueueMax
	}
	return &Controller{queueMax: queueMax}
}

// OnTTSQueued records that a synthesis job was dispatched.
func (c *Controller) OnTTSQueued() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending++
	c.evaluate()
}

// OnTTSCompleted records that a synthesis job finished. The pending count
// never goes below zero.
func (c *Controller) OnTTSCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending > 0 {
		c.pending--
	}
	c.evaluate()
}

// evaluate recomputes the modes from the pending count. Must be called with
// c.mu held. Skip is checked first: it is the more severe degradation.
func (c *Controller) evaluate() {
	switch {
	case c.pending > c.queueMax*2:
		if !c.skipTTS {
			slog.Warn("tts backpressure: skipping synthesis", "pending", c.pending)
		}
		c.skipTTS = true
		c.batchMode = true
	case c.pending > c.queueMax:
		if !c.batchMode {
			slog.Warn("tts backpressure: switching to batch mode", "pending", c.pending)
		}
		c.batchMode = true
		c.skipTTS = false
	default:
		c.batchMode = false
		c.skipTTS = false
	}
}

// ShouldSkipTTS reports whether the caller should bypass synthesis for the
// current commit.
func (c *Controller) ShouldSkipTTS() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipTTS
}

// ShouldBatch reports whether the caller should accumulate commit text
// instead of synthesising it immediately.
func (c *Controller) ShouldBatch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batchMode
}

// AddToBatch appends commit text to the batch buffer.
func (c *Controller) AddToBatch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batch = append(c.batch, text)
}

// FlushBatch returns the accumulated batch text joined by spaces and clears
// the buffer. Returns "" when the buffer is empty.
func (c *Controller) FlushBatch() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.batch) == 0 {
		return ""
	}
	merged := strings.Join(c.batch, " ")
	c.batch = c.batch[:0]
	return merged
}

// Pending returns the current number of outstanding TTS jobs.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Reset clears the pending count, both modes, and the batch buffer.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = 0
	c.batchMode = false
	c.skipTTS = false
	c.batch = nil
}
