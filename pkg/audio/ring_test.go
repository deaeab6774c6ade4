package audio

import (
	"math/rand"
	"testing"
)

// fill returns n samples with values v, v+1, v+2, … encoded as float32.
func fill(v, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(v + i)
	}
	return out
}

func TestRingAppendAndLast(t *testing.T) {
	t.Parallel()

	t.Run("empty ring returns not ok", func(t *testing.T) {
		t.Parallel()
		r := NewRing(1.0, 16000)
		if _, ok := r.Last(1.0); ok {
			t.Fatal("expected ok=false on empty ring")
		}
	})

	t.Run("basic append and read back", func(t *testing.T) {
		t.Parallel()
		r := NewRing(1.0, 10) // capacity 10
		r.Append(fill(0, 6))

		got, ok := r.Last(1.0)
		if !ok {
			t.Fatal("expected ok=true")
		}
		if len(got) != 6 {
			t.Fatalf("want 6 samples, got %d", len(got))
		}
		for i, v := range got {
			if v != float32(i) {
				t.Fatalf("sample %d: want %v, got %v", i, float32(i), v)
			}
		}
	})

	t.Run("wrap-around keeps chronological order", func(t *testing.T) {
		t.Parallel()
		r := NewRing(1.0, 10)
		r.Append(fill(0, 8))
		r.Append(fill(8, 5)) // total 13 > capacity 10

		got, ok := r.Last(1.0)
		if !ok {
			t.Fatal("expected ok=true")
		}
		if len(got) != 10 {
			t.Fatalf("want 10 samples, got %d", len(got))
		}
		// Expect values 3..12 in order.
		for i, v := range got {
			if v != float32(3+i) {
				t.Fatalf("sample %d: want %v, got %v", i, float32(3+i), v)
			}
		}
	})

	t.Run("oversized append keeps trailing capacity", func(t *testing.T) {
		t.Parallel()
		r := NewRing(1.0, 10)
		r.Append(fill(0, 25))

		if got := r.TotalSamplesWritten(); got != 25 {
			t.Fatalf("write position must advance by full length: want 25, got %d", got)
		}
		got, _ := r.Last(1.0)
		if len(got) != 10 {
			t.Fatalf("want 10 samples, got %d", len(got))
		}
		for i, v := range got {
			if v != float32(15+i) {
				t.Fatalf("sample %d: want %v, got %v", i, float32(15+i), v)
			}
		}
	})

	t.Run("shorter window than available", func(t *testing.T) {
		t.Parallel()
		r := NewRing(5.0, 10) // capacity 50
		r.Append(fill(0, 30))

		got, _ := r.Last(1.0) // 10 samples
		if len(got) != 10 {
			t.Fatalf("want 10 samples, got %d", len(got))
		}
		if got[0] != 20 || got[9] != 29 {
			t.Fatalf("want trailing samples 20..29, got %v..%v", got[0], got[9])
		}
	})

	t.Run("window longer than written", func(t *testing.T) {
		t.Parallel()
		r := NewRing(5.0, 16000)
		r.Append(fill(0, 8000)) // 0.5s
		got, _ := r.Last(2.0)
		if len(got) != 8000 {
			t.Fatalf("want all 8000 written samples, got %d", len(got))
		}
	})
}

// TestRingMatchesReference replays random append sequences against a plain
// slice and checks that Last always returns the correct suffix.
func TestRingMatchesReference(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	const capacity = 64
	r := NewRing(1.0, capacity)

	var reference []float32
	next := 0

	for step := range 200 {
		n := rng.Intn(capacity) + 1 // per-call size <= capacity
		chunk := fill(next, n)
		next += n
		r.Append(chunk)
		reference = append(reference, chunk...)

		want := rng.Intn(capacity + 10)
		dur := float64(want) / float64(capacity)
		got, ok := r.Last(dur)
		if !ok {
			t.Fatalf("step %d: unexpected ok=false", step)
		}

		expectLen := min(want, capacity, len(reference))
		if len(got) != expectLen {
			t.Fatalf("step %d: want %d samples, got %d", step, expectLen, len(got))
		}
		suffix := reference[len(reference)-expectLen:]
		for i := range got {
			if got[i] != suffix[i] {
				t.Fatalf("step %d: sample %d mismatch: want %v, got %v", step, i, suffix[i], got[i])
			}
		}
	}
}

func TestRingReset(t *testing.T) {
	t.Parallel()

	r := NewRing(1.0, 100)
	r.Append(fill(0, 50))
	r.Reset()

	if got := r.TotalSamplesWritten(); got != 0 {
		t.Fatalf("want 0 after reset, got %d", got)
	}
	if _, ok := r.Last(1.0); ok {
		t.Fatal("expected ok=false after reset")
	}
	if d := r.DurationAvailable(); d != 0 {
		t.Fatalf("want 0s available after reset, got %v", d)
	}
}

func TestRingDurationAvailable(t *testing.T) {
	t.Parallel()

	r := NewRing(1.0, 16000)
	r.Append(make([]float32, 4000))
	if d := r.DurationAvailable(); d != 0.25 {
		t.Fatalf("want 0.25s, got %v", d)
	}
	r.Append(make([]float32, 32000))
	if d := r.DurationAvailable(); d != 1.0 {
		t.Fatalf("capped at capacity: want 1.0s, got %v", d)
	}
	if got := r.TotalSamplesWritten(); got != 36000 {
		t.Fatalf("want 36000 total written, got %d", got)
	}
}

func TestRingAppendPCM16(t *testing.T) {
	t.Parallel()

	r := NewRing(1.0, 16000)
	// Samples: 0, 16384 (0.5), -16384 (-0.5), 32767, -32768.
	pcm := []byte{
		0x00, 0x00,
		0x00, 0x40,
		0x00, 0xC0,
		0xFF, 0x7F,
		0x00, 0x80,
	}
	r.AppendPCM16(pcm)

	got, ok := r.Last(1.0)
	if !ok || len(got) != 5 {
		t.Fatalf("want 5 samples, got %d (ok=%v)", len(got), ok)
	}
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1.0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: want %v, got %v", i, want[i], got[i])
		}
	}
}
