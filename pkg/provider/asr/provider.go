// Package asr defines the Provider interface for speech-recognition
// backends used by the translation pipeline.
//
// The pipeline performs pseudo-streaming recognition: every ASR tick it
// decodes the full trailing audio window and lets the commit tracker decide
// which prefix of the hypothesis is final. A Provider therefore only needs a
// single blocking Transcribe call over a float32 window — session handling,
// windowing, and stability logic all live in the orchestrator.
//
// Implementations must be safe for concurrent use; the shared inference
// worker pool may invoke Transcribe from multiple sessions at once.
package asr

import "context"

// Provider is the abstraction over any speech-recognition backend.
type Provider interface {
	// Transcribe decodes a window of mono float32 samples (normalised to
	// [-1, 1], 16 kHz) and returns the hypothesis text.
	//
	// lang is the ISO-639-1 source language hint; an empty string lets the
	// backend auto-detect. contextHint carries the tail of previously
	// committed text for conditioning; backends without prompt support
	// ignore it.
	//
	// An empty string return means "no speech detected / rejected" and is
	// not an error. Errors are reserved for backend failures; the caller
	// treats them as a skipped tick.
	Transcribe(ctx context.Context, samples []float32, lang string, contextHint string) (string, error)
}
