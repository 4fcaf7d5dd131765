package wav

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestHeader_FieldLayout(t *testing.T) {
	f := Format{Channels: 1, SampleRate: 24000, BitsPerSample: 16}
	h := Header(10000, f)

	if len(h) != HeaderSize {
		t.Fatalf("expected %d header bytes, got %d", HeaderSize, len(h))
	}
	if !bytes.Equal(h[0:4], []byte("RIFF")) || !bytes.Equal(h[8:12], []byte("WAVE")) {
		t.Errorf("bad RIFF/WAVE magic: %q %q", h[0:4], h[8:12])
	}
	if got := binary.LittleEndian.Uint32(h[4:8]); got != 36+10000 {
		t.Errorf("total size = %d, want %d", got, 36+10000)
	}
	if got := binary.LittleEndian.Uint32(h[16:20]); got != 16 {
		t.Errorf("fmt chunk size = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint16(h[20:22]); got != 1 {
		t.Errorf("format code = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(h[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(h[24:28]); got != 24000 {
		t.Errorf("sample rate = %d, want 24000", got)
	}
	if got := binary.LittleEndian.Uint32(h[28:32]); got != 48000 {
		t.Errorf("byte rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint16(h[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(h[34:36]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if !bytes.Equal(h[36:40], []byte("data")) {
		t.Errorf("bad data chunk tag: %q", h[36:40])
	}
	if got := binary.LittleEndian.Uint32(h[40:44]); got != 10000 {
		t.Errorf("payload length = %d, want 10000", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	f := Format{Channels: 2, SampleRate: 44100, BitsPerSample: 16}
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	frame := Encode(payload, f)
	info, got, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload round-trip mismatch: %v", got)
	}
	if info.Format != f {
		t.Errorf("format = %+v, want %+v", info.Format, f)
	}
	if info.DataLen != len(payload) {
		t.Errorf("DataLen = %d, want %d", info.DataLen, len(payload))
	}
	if info.TotalSize != len(payload)+36 {
		t.Errorf("TotalSize = %d, want %d", info.TotalSize, len(payload)+36)
	}
	if info.BlockAlign != 4 || info.ByteRate != 44100*4 {
		t.Errorf("block align/byte rate = %d/%d", info.BlockAlign, info.ByteRate)
	}
}

func TestDecode_Rejects(t *testing.T) {
	if _, _, err := Decode(make([]byte, 10)); err != ErrShortHeader {
		t.Errorf("short buffer: got %v, want ErrShortHeader", err)
	}

	frame := Encode([]byte{0, 0}, DefaultFormat())
	frame[0] = 'X'
	if _, _, err := Decode(frame); err != ErrBadMagic {
		t.Errorf("bad magic: got %v, want ErrBadMagic", err)
	}

	frame = Encode([]byte{0, 0, 0, 0}, DefaultFormat())
	binary.LittleEndian.PutUint32(frame[40:44], 2)
	if _, _, err := Decode(frame); err == nil {
		t.Error("expected error for payload length mismatch")
	}
}

func TestFormat_BytesForDuration(t *testing.T) {
	f := DefaultFormat()
	// 150ms at 24kHz mono 16-bit = 48000 * 0.15 = 7200 bytes.
	if got := f.BytesForDuration(150); got != 7200 {
		t.Errorf("BytesForDuration(150) = %d, want 7200", got)
	}
	if got := f.BytesForDuration(2000); got != 96000 {
		t.Errorf("BytesForDuration(2000) = %d, want 96000", got)
	}
}
