// Package audio provides PCM sample helpers, the anti-glitch conditioner
// applied to every emitted frame, and an Opus decode path for non-PCM
// channel parts.
package audio

import (
	"encoding/binary"
	"fmt"
)

// BytesToPCM converts a little-endian byte buffer to int16 PCM samples.
func BytesToPCM(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("invalid PCM data length: %d", len(data))
	}
	pcm := make([]int16, len(data)/2)
	for i := 0; i < len(pcm); i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return pcm, nil
}

// PCMToBytes converts int16 PCM samples to a little-endian byte buffer.
func PCMToBytes(pcm []int16) []byte {
	data := make([]byte, len(pcm)*2)
	for i, val := range pcm {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(val))
	}
	return data
}
