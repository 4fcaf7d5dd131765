// Package wav builds and parses minimal uncompressed PCM WAV containers.
// Every packaged frame carries a full 44-byte header so each websocket
// message is independently decodable by the browser audio player.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed size of the RIFF/WAVE PCM header.
const HeaderSize = 44

const pcmFormatCode = 1

var (
	// ErrShortHeader is returned when a buffer is too small to hold a header.
	ErrShortHeader = errors.New("wav: buffer shorter than 44-byte header")
	// ErrBadMagic is returned when the RIFF/WAVE magic bytes are wrong.
	ErrBadMagic = errors.New("wav: missing RIFF/WAVE magic")
)

// Format describes the PCM layout of a frame payload.
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// DefaultFormat matches the speech channel's native output.
func DefaultFormat() Format {
	return Format{Channels: 1, SampleRate: 24000, BitsPerSample: 16}
}

// BlockAlign returns the size in bytes of one complete sample across
// all channels. Payloads must be a multiple of this.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns the number of payload bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// BytesForDuration returns the payload size for the given duration in
// milliseconds, rounded down.
func (f Format) BytesForDuration(ms int) int {
	return f.ByteRate() * ms / 1000
}

// Header renders the 44-byte RIFF/WAVE PCM header for a payload of
// dataLen bytes. All integer fields are little-endian.
func Header(dataLen int, f Format) []byte {
	byteRate := f.ByteRate()
	blockAlign := f.BlockAlign()

	buf := make([]byte, HeaderSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], pcmFormatCode)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(f.BitsPerSample))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	return buf
}

// Encode packages payload into a self-contained WAV frame.
func Encode(payload []byte, f Format) []byte {
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, Header(len(payload), f)...)
	frame = append(frame, payload...)
	return frame
}

// Info is the parsed view of a frame header, used for diagnostics and
// header verification in tests.
type Info struct {
	Format     Format
	ByteRate   int
	BlockAlign int
	TotalSize  int // RIFF size field: payload length + 36
	DataLen    int
}

// Decode parses a frame produced by Encode and returns its header info
// and payload. It rejects frames whose declared payload length does not
// match the actual trailing byte count.
func Decode(frame []byte) (Info, []byte, error) {
	if len(frame) < HeaderSize {
		return Info{}, nil, ErrShortHeader
	}
	if string(frame[0:4]) != "RIFF" || string(frame[8:12]) != "WAVE" {
		return Info{}, nil, ErrBadMagic
	}
	if string(frame[12:16]) != "fmt " || string(frame[36:40]) != "data" {
		return Info{}, nil, ErrBadMagic
	}
	if code := binary.LittleEndian.Uint16(frame[20:22]); code != pcmFormatCode {
		return Info{}, nil, fmt.Errorf("wav: unsupported format code %d", code)
	}

	info := Info{
		Format: Format{
			Channels:      int(binary.LittleEndian.Uint16(frame[22:24])),
			SampleRate:    int(binary.LittleEndian.Uint32(frame[24:28])),
			BitsPerSample: int(binary.LittleEndian.Uint16(frame[34:36])),
		},
		ByteRate:   int(binary.LittleEndian.Uint32(frame[28:32])),
		BlockAlign: int(binary.LittleEndian.Uint16(frame[32:34])),
		TotalSize:  int(binary.LittleEndian.Uint32(frame[4:8])),
		DataLen:    int(binary.LittleEndian.Uint32(frame[40:44])),
	}

	payload := frame[HeaderSize:]
	if info.DataLen != len(payload) {
		return Info{}, nil, fmt.Errorf("wav: header declares %d payload bytes, frame carries %d", info.DataLen, len(payload))
	}

	return info, payload, nil
}
