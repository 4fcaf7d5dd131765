package stream

import (
	"encoding/base64"
	"math/rand"
	"testing"
)

func wireChunk(seed int64, size int) string {
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, size)
	rng.Read(data)
	return base64.StdEncoding.EncodeToString(data)
}

func TestValidator_AcceptsAndDecodes(t *testing.T) {
	v := NewValidator(0)

	chunk := wireChunk(1, 2000)
	decoded, reason := v.Validate(chunk)
	if reason != RejectNone {
		t.Fatalf("rejected valid chunk: %s", reason)
	}
	if len(decoded) != 2000 {
		t.Errorf("decoded %d bytes, want 2000", len(decoded))
	}
}

func TestValidator_RejectsMalformed(t *testing.T) {
	v := NewValidator(0)

	if _, reason := v.Validate(""); reason != RejectMalformed {
		t.Errorf("empty chunk: got %s, want malformed", reason)
	}
	if _, reason := v.Validate("dG9vc21hbGw="); reason != RejectMalformed {
		t.Errorf("tiny chunk: got %s, want malformed", reason)
	}

	// Long enough but not valid base64.
	bad := make([]byte, 200)
	for i := range bad {
		bad[i] = '!'
	}
	if _, reason := v.Validate(string(bad)); reason != RejectMalformed {
		t.Errorf("undecodable chunk: got %s, want malformed", reason)
	}
}

func TestValidator_RejectsExactDuplicate(t *testing.T) {
	v := NewValidator(0)
	chunk := wireChunk(2, 1000)

	if _, reason := v.Validate(chunk); reason != RejectNone {
		t.Fatalf("first submission rejected: %s", reason)
	}
	if _, reason := v.Validate(chunk); reason != RejectDuplicate {
		t.Errorf("second submission: got %s, want duplicate", reason)
	}
}

func TestValidator_DedupIsContentBased(t *testing.T) {
	v := NewValidator(0)

	first := wireChunk(3, 1500)
	if _, reason := v.Validate(first); reason != RejectNone {
		t.Fatalf("seed chunk rejected: %s", reason)
	}

	// Interleave unrelated chunks, then replay the first out of its
	// original position.
	for seed := int64(10); seed < 15; seed++ {
		if _, reason := v.Validate(wireChunk(seed, 1500)); reason != RejectNone {
			t.Fatalf("filler chunk %d rejected: %s", seed, reason)
		}
	}

	if _, reason := v.Validate(first); reason != RejectDuplicate {
		t.Errorf("out-of-order replay: got %s, want duplicate", reason)
	}
}

func TestValidator_EvictsOldestHalf(t *testing.T) {
	v := NewValidator(10)

	for seed := int64(0); seed < 11; seed++ {
		if _, reason := v.Validate(wireChunk(seed, 200)); reason != RejectNone {
			t.Fatalf("chunk %d rejected: %s", seed, reason)
		}
	}

	// 11 inserts against a cap of 10 triggers one eviction pass,
	// keeping the most recent half.
	if got := v.Size(); got != 5 {
		t.Errorf("retained %d fingerprints after eviction, want 5", got)
	}

	// Evicted chunks are accepted again; retained ones still reject.
	if _, reason := v.Validate(wireChunk(0, 200)); reason != RejectNone {
		t.Errorf("evicted chunk still rejected: %s", reason)
	}
	if _, reason := v.Validate(wireChunk(10, 200)); reason != RejectDuplicate {
		t.Errorf("retained chunk: got %s, want duplicate", reason)
	}
}

func TestFingerprint_ShortBuffersSkipDedup(t *testing.T) {
	if fp := fingerprint(make([]byte, 2*fingerprintSlice-1)); fp != "" {
		t.Errorf("buffer below the slice window fingerprinted: %q", fp)
	}
	if fp := fingerprint(make([]byte, 2*fingerprintSlice)); fp == "" {
		t.Error("buffer at the slice window not fingerprinted")
	}
}
