package audio

import (
	"encoding/binary"
	"math"
)

// PCM16ToFloat32 converts 16-bit signed little-endian PCM bytes to float32
// samples normalised to [-1.0, 1.0]. A trailing odd byte is silently ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// Float32ToPCM16 converts normalised float32 samples to 16-bit signed
// little-endian PCM bytes. Samples outside [-1.0, 1.0] are clamped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(max(min(s*32768, 32767), -32767))
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(v))
	}
	return out
}

// RMS returns the root mean square of the samples, a cheap proxy for signal
// energy. Returns 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ResampleMono16 converts 16-bit mono little-endian PCM from one sample
// rate to another by walking the input at a fractional stride and linearly
// blending neighbouring samples. The input is returned unchanged when no
// rate change is needed or either rate is invalid.
func ResampleMono16(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(pcm) < 2 {
		return pcm
	}

	in := PCM16ToFloat32(pcm)
	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		return nil
	}

	out := make([]float32, outLen)
	stride := float64(fromRate) / float64(toRate)
	pos := 0.0
	for i := range out {
		left := int(pos)
		if left >= len(in) {
			left = len(in) - 1
		}
		right := left + 1
		if right >= len(in) {
			right = len(in) - 1
		}
		blend := float32(pos - float64(left))
		out[i] = in[left]*(1-blend) + in[right]*blend
		pos += stride
	}
	return Float32ToPCM16(out)
}
