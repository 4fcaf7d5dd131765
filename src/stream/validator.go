// Package stream implements the per-session audio turn pipeline: chunk
// validation and deduplication, buffered accumulation, and packaging of
// conditioned PCM into self-contained WAV frames.
package stream

import (
	"encoding/base64"
)

// RejectReason explains why a chunk was dropped.
type RejectReason string

const (
	// RejectNone means the chunk was accepted.
	RejectNone RejectReason = ""
	// RejectMalformed means the chunk was too small to be meaningful
	// or failed wire decoding.
	RejectMalformed RejectReason = "malformed"
	// RejectDuplicate means the chunk's fingerprint was already seen
	// this session.
	RejectDuplicate RejectReason = "duplicate"
)

const (
	// minWireChars is the smallest base64 payload worth decoding.
	minWireChars = 100

	// fingerprintSlice is how many bytes from each end of a decoded
	// chunk feed the fingerprint. Chunks shorter than two slices are
	// accepted without dedup.
	fingerprintSlice = 16

	// DefaultFingerprintCap bounds the dedup set; once exceeded the
	// oldest half is evicted in one pass.
	DefaultFingerprintCap = 1000
)

// Validator rejects malformed or already-seen chunks using a rolling
// fingerprint set. Content-based: a colliding chunk is rejected no
// matter where in the stream it arrives. Owned by one Processor, never
// shared across sessions.
type Validator struct {
	cap   int
	seen  map[string]struct{}
	order []string
}

// NewValidator creates a validator with the given fingerprint cap.
// Non-positive caps fall back to DefaultFingerprintCap.
func NewValidator(fingerprintCap int) *Validator {
	if fingerprintCap <= 0 {
		fingerprintCap = DefaultFingerprintCap
	}
	return &Validator{
		cap:  fingerprintCap,
		seen: make(map[string]struct{}),
	}
}

// Validate decodes one wire chunk and screens it against the
// fingerprint set. On accept it returns the decoded bytes and
// RejectNone; otherwise the reject reason.
func (v *Validator) Validate(wireData string) ([]byte, RejectReason) {
	if len(wireData) < minWireChars {
		return nil, RejectMalformed
	}

	decoded, err := base64.StdEncoding.DecodeString(wireData)
	if err != nil {
		return nil, RejectMalformed
	}

	fp := fingerprint(decoded)
	if fp == "" {
		return decoded, RejectNone
	}

	if _, dup := v.seen[fp]; dup {
		return nil, RejectDuplicate
	}

	v.seen[fp] = struct{}{}
	v.order = append(v.order, fp)
	if len(v.order) > v.cap {
		v.evictOldestHalf()
	}

	return decoded, RejectNone
}

// Reset clears the fingerprint set.
func (v *Validator) Reset() {
	v.seen = make(map[string]struct{})
	v.order = v.order[:0]
}

// Size returns the number of retained fingerprints.
func (v *Validator) Size() int {
	return len(v.order)
}

func fingerprint(decoded []byte) string {
	if len(decoded) < 2*fingerprintSlice {
		return ""
	}
	combined := make([]byte, 0, 2*fingerprintSlice)
	combined = append(combined, decoded[:fingerprintSlice]...)
	combined = append(combined, decoded[len(decoded)-fingerprintSlice:]...)
	return base64.StdEncoding.EncodeToString(combined)
}

// evictOldestHalf drops the oldest half of the set in a single pass,
// keeping insertion amortized O(1) instead of evicting per insert.
func (v *Validator) evictOldestHalf() {
	keep := len(v.order) / 2
	evicted := v.order[:len(v.order)-keep]
	for _, fp := range evicted {
		delete(v.seen, fp)
	}
	remaining := make([]string, keep)
	copy(remaining, v.order[len(v.order)-keep:])
	v.order = remaining
}
