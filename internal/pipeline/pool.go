package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// InferencePool bounds the number of concurrent blocking model calls
// (ASR, MT, TTS) across all sessions. Model inference saturates CPU cores;
// without a bound, a burst of sessions would thrash rather than queue.
//
// The zero value is not usable; create one with [NewInferencePool] and
// share it process-wide.
type InferencePool struct {
	sem *semaphore.Weighted
}

// NewInferencePool creates a pool that admits up to workers concurrent
// calls. workers values below 1 are raised to 1.
func NewInferencePool(workers int) *InferencePool {
	if workers < 1 {
		workers = 1
	}
	return &InferencePool{sem: semaphore.NewWeighted(int64(workers))}
}

// Do runs fn while holding one worker slot, blocking until a slot is free
// or ctx is cancelled. The returned error is ctx's error when acquisition
// fails, otherwise fn's.
func (p *InferencePool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
