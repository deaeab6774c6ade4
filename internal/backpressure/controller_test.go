package backpressure

import (
	"math/rand"
	"testing"
)

func TestModeThresholds(t *testing.T) {
	t.Parallel()

	c := NewController(5)

	// Up to queueMax pending: no degradation.
	for range 5 {
		c.OnTTSQueued()
	}
	if c.ShouldBatch() || c.ShouldSkipTTS() {
		t.Fatal("no degradation expected at pending == queueMax")
	}

	// queueMax+1 .. 2*queueMax: batch only.
	c.OnTTSQueued()
	if !c.ShouldBatch() {
		t.Fatal("batch mode expected above queueMax")
	}
	if c.ShouldSkipTTS() {
		t.Fatal("skip mode must not engage yet")
	}
	for range 4 {
		c.OnTTSQueued() // pending = 10
	}
	if c.ShouldSkipTTS() {
		t.Fatal("skip mode must not engage at pending == 2*queueMax")
	}

	// Above 2*queueMax: skip.
	c.OnTTSQueued() // pending = 11
	if !c.ShouldSkipTTS() {
		t.Fatal("skip mode expected above 2*queueMax")
	}

	// Dropping back under queueMax clears both modes.
	for range 6 {
		c.OnTTSCompleted() // pending = 5
	}
	if c.ShouldBatch() || c.ShouldSkipTTS() {
		t.Fatal("both modes must clear at pending <= queueMax")
	}
}

func TestPendingNeverNegative(t *testing.T) {
	t.Parallel()

	c := NewController(3)
	c.OnTTSCompleted()
	c.OnTTSCompleted()
	if got := c.Pending(); got != 0 {
		t.Fatalf("pending must not go negative, got %d", got)
	}
}

func TestBatchBuffer(t *testing.T) {
	t.Parallel()

	c := NewController(5)
	if got := c.FlushBatch(); got != "" {
		t.Fatalf("empty flush must return \"\", got %q", got)
	}

	c.AddToBatch("hola mundo")
	c.AddToBatch("como estás")
	if got := c.FlushBatch(); got != "hola mundo como estás" {
		t.Fatalf("want space-joined batch, got %q", got)
	}
	if got := c.FlushBatch(); got != "" {
		t.Fatalf("flush must clear the buffer, got %q", got)
	}
}

// TestNoTextLoss drives a random queued/completed schedule through a
// skip/batch/speak dispatch that records every segment in the transcript
// before choosing the audio path, and checks that segments were dispatched
// and that no transcript entry is empty.
func TestNoTextLoss(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(99))
	c := NewController(3)

	var transcript []string // what the client always receives
	var spoken []string     // what reaches TTS

	dispatch := func(text string) {
		transcript = append(transcript, text)
		if c.ShouldSkipTTS() {
			return
		}
		if c.ShouldBatch() {
			c.AddToBatch(text)
			return
		}
		if batched := c.FlushBatch(); batched != "" {
			text = batched + " " + text
		}
		spoken = append(spoken, text)
		c.OnTTSQueued()
	}

	for i := range 200 {
		switch rng.Intn(3) {
		case 0, 1:
			dispatch("seg" + string(rune('a'+i%26)))
		case 2:
			c.OnTTSCompleted()
		}
	}

	if len(transcript) == 0 {
		t.Fatal("schedule produced no commits")
	}
	// Every transcript entry must be non-empty, whatever the audio path did.
	for i, text := range transcript {
		if text == "" {
			t.Fatalf("transcript entry %d is empty", i)
		}
	}
}

func TestResetClearsEverything(t *testing.T) {
	t.Parallel()

	c := NewController(2)
	for range 10 {
		c.OnTTSQueued()
	}
	c.AddToBatch("pending text")
	c.Reset()

	if c.Pending() != 0 || c.ShouldBatch() || c.ShouldSkipTTS() {
		t.Fatal("reset must clear pending count and modes")
	}
	if got := c.FlushBatch(); got != "" {
		t.Fatalf("reset must clear the batch buffer, got %q", got)
	}
}
