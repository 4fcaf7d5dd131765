package audio

import (
	"math"
)

const (
	// highpassAlpha is the smoothing coefficient of the one-pole
	// high-pass recurrence. Close to 1 so the filter is nearly
	// transparent and only strips DC offset and rumble.
	highpassAlpha = 0.98

	// limiterScale leaves headroom so concatenated chunks never clip.
	limiterScale = 0.95

	// maxFadeSamples caps the edge crossfade length.
	maxFadeSamples = 32
)

// Condition applies the anti-glitch chain to a buffer of whole 16-bit
// little-endian samples: a gentle high-pass filter, soft limiting, and
// short cosine-shaped fades at both edges to suppress clicks where
// independently generated chunks are concatenated.
//
// The caller's buffer is never mutated; the conditioned copy is
// returned. Buffers too small to hold two samples pass through as a
// plain copy.
//
// Filter state intentionally starts from zero on every call rather
// than carrying over from the previous chunk, matching the playback
// behavior clients already expect at chunk boundaries.
func Condition(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)

	if len(data) < 4 {
		return out
	}

	pcm, err := BytesToPCM(out)
	if err != nil {
		// Odd-length buffers never reach here from the processor; a
		// bare copy keeps the function total anyway.
		return out
	}

	var prevInput, prevOutput float64
	for i, sample := range pcm {
		currentInput := float64(sample)

		filtered := highpassAlpha * (prevOutput + currentInput - prevInput)
		prevInput = currentInput
		prevOutput = filtered

		limited := math.Round(filtered * limiterScale)
		if limited > 32767 {
			limited = 32767
		} else if limited < -32767 {
			limited = -32767
		}
		pcm[i] = int16(limited)
	}

	applyEdgeFades(pcm)

	return PCMToBytes(pcm)
}

// applyEdgeFades applies a quarter-sine fade-in at the start of the
// buffer and a matching fade-out at the end.
func applyEdgeFades(pcm []int16) {
	fadeLen := len(pcm) / 8
	if fadeLen > maxFadeSamples {
		fadeLen = maxFadeSamples
	}
	if fadeLen == 0 {
		return
	}

	for i := 0; i < fadeLen; i++ {
		gain := math.Sin(float64(i) / float64(fadeLen) * math.Pi * 0.5)
		pcm[i] = int16(math.Round(float64(pcm[i]) * gain))
	}

	for i := 0; i < fadeLen; i++ {
		gain := math.Sin(float64(fadeLen-i) / float64(fadeLen) * math.Pi * 0.5)
		idx := len(pcm) - fadeLen + i
		pcm[idx] = int16(math.Round(float64(pcm[idx]) * gain))
	}
}
