package audio

import (
	"errors"
	"fmt"

	"github.com/pion/opus"
)

// opusOutputRate is the PCM rate the decoder produces at.
const opusOutputRate = 48000

// maxOpusFrameBytes holds one decoded 60ms stereo frame at 48kHz, the
// largest output a single packet can produce.
const maxOpusFrameBytes = 60 * opusOutputRate / 1000 * 2 * 2

var errUnsupportedOpusPacket = errors.New("unsupported opus packet configuration")

// OpusDecoder decodes Opus-tagged channel parts into 16-bit PCM so
// they can flow through the same conditioning path as raw PCM parts.
// The decoder carries codec state, so one instance belongs to exactly
// one session and must not be shared.
type OpusDecoder struct {
	decoder opus.Decoder
}

// NewOpusDecoder creates a decoder for a single session's stream.
func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{decoder: opus.NewDecoder()}
}

// Decode decodes a single Opus packet into little-endian PCM bytes,
// sized to the packet's actual frame duration.
func (d *OpusDecoder) Decode(frame []byte) ([]byte, error) {
	out := make([]byte, maxOpusFrameBytes)
	_, isStereo, err := d.decoder.Decode(frame, out)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}

	n := decodedLen(frame[0], isStereo)
	if n <= 0 || n > len(out) {
		return nil, errUnsupportedOpusPacket
	}
	return out[:n], nil
}

// decodedLen derives the decoded PCM byte count from the packet's TOC
// byte. Only SILK-only configurations (0-11) decode; their frame
// duration cycles 10/20/40/60ms within each bandwidth group, produced
// at 48kHz 16-bit.
func decodedLen(toc byte, isStereo bool) int {
	config := toc >> 3
	if config > 11 {
		return 0
	}

	var frameMs int
	switch config & 0x3 {
	case 0:
		frameMs = 10
	case 1:
		frameMs = 20
	case 2:
		frameMs = 40
	case 3:
		frameMs = 60
	}

	channels := 1
	if isStereo {
		channels = 2
	}
	return frameMs * opusOutputRate / 1000 * channels * 2
}

// IsOpusMIME reports whether a channel part's MIME type declares Opus
// rather than raw PCM.
func IsOpusMIME(mimeType string) bool {
	switch {
	case len(mimeType) >= 10 && mimeType[:10] == "audio/opus":
		return true
	case len(mimeType) >= 9 && mimeType[:9] == "audio/ogg":
		return true
	default:
		return false
	}
}
