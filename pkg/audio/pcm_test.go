package audio

import (
	"math"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.5, 0.999, -0.999}
	got := PCM16ToFloat32(Float32ToPCM16(in))
	if len(got) != len(in) {
		t.Fatalf("length mismatch: want %d, got %d", len(in), len(got))
	}
	for i := range in {
		if d := math.Abs(float64(got[i] - in[i])); d > 1.0/32768.0 {
			t.Fatalf("sample %d: want %v, got %v (diff %v)", i, in[i], got[i], d)
		}
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	t.Parallel()

	out := Float32ToPCM16([]float32{1.5, -1.5})
	samples := PCM16ToFloat32(out)
	if samples[0] != 32767.0/32768.0 {
		t.Fatalf("positive overflow must clamp to max: got %v", samples[0])
	}
	if samples[1] != -32767.0/32768.0 {
		t.Fatalf("negative overflow must clamp to min: got %v", samples[1])
	}
}

func TestPCM16ToFloat32OddByte(t *testing.T) {
	t.Parallel()

	got := PCM16ToFloat32([]byte{0x00, 0x40, 0x7F})
	if len(got) != 1 {
		t.Fatalf("trailing odd byte must be ignored: want 1 sample, got %d", len(got))
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		if got := RMS(nil); got != 0 {
			t.Fatalf("want 0, got %v", got)
		}
	})

	t.Run("silence", func(t *testing.T) {
		t.Parallel()
		if got := RMS(make([]float32, 1000)); got != 0 {
			t.Fatalf("want 0, got %v", got)
		}
	})

	t.Run("constant amplitude", func(t *testing.T) {
		t.Parallel()
		samples := make([]float32, 1000)
		for i := range samples {
			samples[i] = 0.25
		}
		if got := RMS(samples); math.Abs(got-0.25) > 1e-6 {
			t.Fatalf("want 0.25, got %v", got)
		}
	})

	t.Run("sine wave", func(t *testing.T) {
		t.Parallel()
		samples := make([]float32, 16000)
		for i := range samples {
			samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
		}
		// RMS of a sine is amplitude / sqrt(2).
		want := 0.5 / math.Sqrt2
		if got := RMS(samples); math.Abs(got-want) > 1e-3 {
			t.Fatalf("want ~%v, got %v", want, got)
		}
	})
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	t.Run("same rate is a no-op", func(t *testing.T) {
		t.Parallel()
		pcm := Float32ToPCM16([]float32{0.1, 0.2, 0.3})
		got := ResampleMono16(pcm, 16000, 16000)
		if &got[0] != &pcm[0] {
			t.Fatal("same-rate input should be returned unchanged")
		}
	})

	t.Run("halving the rate halves the samples", func(t *testing.T) {
		t.Parallel()
		pcm := make([]byte, 2*200)
		got := ResampleMono16(pcm, 48000, 24000)
		if len(got) != 2*100 {
			t.Fatalf("want 100 samples, got %d", len(got)/2)
		}
	})

	t.Run("upsampling preserves a constant signal", func(t *testing.T) {
		t.Parallel()
		in := make([]float32, 100)
		for i := range in {
			in[i] = 0.5
		}
		out := PCM16ToFloat32(ResampleMono16(Float32ToPCM16(in), 16000, 24000))
		if len(out) != 150 {
			t.Fatalf("want 150 samples, got %d", len(out))
		}
		for i, v := range out {
			if math.Abs(float64(v)-0.5) > 0.01 {
				t.Fatalf("sample %d drifted: %v", i, v)
			}
		}
	})
}
