package stream

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"time"

	"github.com/mimi-labs/voicestream/src/audio"
	"github.com/mimi-labs/voicestream/src/logger"
	"github.com/mimi-labs/voicestream/src/wav"
)

// Config tunes a Processor. Zero values fall back to the defaults the
// speech channel was profiled against.
type Config struct {
	Format         wav.Format
	MinBuffer      time.Duration // emit threshold, audio time
	MaxBuffer      time.Duration // hard accumulator cap, audio time
	FingerprintCap int
}

// DefaultConfig returns the production tuning: 24kHz mono 16-bit,
// 150ms minimum before a frame is cut, 2s hard cap.
func DefaultConfig() Config {
	return Config{
		Format:         wav.DefaultFormat(),
		MinBuffer:      150 * time.Millisecond,
		MaxBuffer:      2 * time.Second,
		FingerprintCap: DefaultFingerprintCap,
	}
}

// Stats counts what a Processor has seen over its lifetime.
type Stats struct {
	TotalProcessed    int // conditioned payload bytes emitted
	ChunksEmitted     int // frames produced
	DuplicatesSkipped int
	ErrorsEncountered int
}

// Processor accumulates validated audio for one turn and decides frame
// emission boundaries. It owns its validator and byte accumulator
// exclusively; a processor instance serves exactly one session.
//
// Invariant: after any emission the accumulator holds only the bytes
// past the last whole sample, so no frame ever carries a partial
// sample.
type Processor struct {
	sessionID string
	log       *logger.Logger

	format    wav.Format
	minBuffer time.Duration
	maxBuffer time.Duration

	validator *Validator
	opus      *audio.OpusDecoder

	buf   []byte
	seq   int
	stats Stats
}

// NewProcessor creates a turn processor for the given session.
func NewProcessor(sessionID string, cfg Config) *Processor {
	if cfg.Format.Channels == 0 || cfg.Format.BitsPerSample == 0 || cfg.Format.SampleRate == 0 {
		cfg.Format = wav.DefaultFormat()
	}
	if cfg.MinBuffer <= 0 {
		cfg.MinBuffer = 150 * time.Millisecond
	}
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = 2 * time.Second
	}

	return &Processor{
		sessionID: sessionID,
		log:       logger.WithPrefix("Processor " + sessionID),
		format:    cfg.Format,
		minBuffer: cfg.MinBuffer,
		maxBuffer: cfg.MaxBuffer,
		validator: NewValidator(cfg.FingerprintCap),
	}
}

// Format returns the format frames are currently packaged with.
func (p *Processor) Format() wav.Format {
	return p.format
}

// SetSampleRate adopts a corrected sample rate reported by the channel
// mid-turn. Frames already emitted keep their old headers; only
// subsequent packaging uses the new rate.
func (p *Processor) SetSampleRate(rate int) {
	if rate <= 0 || rate == p.format.SampleRate {
		return
	}
	p.log.Info("Sample rate corrected: %d -> %d", p.format.SampleRate, rate)
	p.format.SampleRate = rate
}

// Stats returns a snapshot of the processor's counters.
func (p *Processor) Stats() Stats {
	return p.stats
}

// BufferedBytes returns the current accumulator length.
func (p *Processor) BufferedBytes() int {
	return len(p.buf)
}

// ProcessChunk runs one wire chunk through validation, accumulation,
// and — once enough audio has gathered — conditioning and packaging.
// It returns a complete WAV frame, or nil when the chunk was dropped
// or merely buffered. Bad input never propagates: rejects are logged
// and absorbed here.
func (p *Processor) ProcessChunk(wireData string) []byte {
	decoded, reason := p.validator.Validate(wireData)
	switch reason {
	case RejectDuplicate:
		p.stats.DuplicatesSkipped++
		p.log.Debug("Skipped chunk: %s", reason)
		return nil
	case RejectMalformed:
		p.stats.ErrorsEncountered++
		p.log.Debug("Skipped chunk: %s", reason)
		return nil
	}

	p.buf = append(p.buf, decoded...)

	if len(p.buf) >= p.format.BytesForDuration(int(p.minBuffer.Milliseconds())) {
		return p.emit()
	}

	// With the default tuning (min below max) the threshold above
	// always fires first; this cap only triggers when a caller
	// configures the emission floor above it.
	if len(p.buf) > p.format.BytesForDuration(int(p.maxBuffer.Milliseconds())) {
		p.log.Warn("Buffer overflow at %d bytes, force packaging", len(p.buf))
		return p.emit()
	}

	return nil
}

// ProcessBinary feeds an already-decoded part through the same path,
// decoding Opus-tagged parts first. Used for channels whose transport
// hands over raw bytes instead of base64 text.
func (p *Processor) ProcessBinary(data []byte, mimeType string) []byte {
	if audio.IsOpusMIME(mimeType) {
		if p.opus == nil {
			p.opus = audio.NewOpusDecoder()
		}
		pcm, err := p.opus.Decode(data)
		if err != nil {
			p.stats.ErrorsEncountered++
			p.log.Warn("Opus decode failed: %v", err)
			return nil
		}
		data = pcm
	}
	return p.ProcessChunk(wireEncode(data))
}

// Flush packages whatever remains in the accumulator regardless of the
// emission threshold, then clears it. Called at end-of-turn and on
// timeout. Any trailing partial sample is discarded with the flush.
func (p *Processor) Flush() []byte {
	if len(p.buf) == 0 {
		return nil
	}

	p.log.Debug("Flushing %d buffered bytes", len(p.buf))
	frame := p.emit()
	p.buf = p.buf[:0]
	return frame
}

// Reset clears all per-turn state so the processor can serve the
// session's next turn.
func (p *Processor) Reset() {
	p.buf = p.buf[:0]
	p.seq = 0
	p.stats = Stats{}
	p.validator.Reset()
}

// emit packages the sample-aligned prefix of the accumulator into a
// WAV frame, carrying any partial trailing sample forward. A failure
// inside conditioning or packaging drops the pending audio rather than
// aborting the turn.
func (p *Processor) emit() (frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			p.stats.ErrorsEncountered++
			p.log.Error("Processing failure, dropping pending audio: %v", r)
			frame = nil
		}
	}()

	if len(p.buf) == 0 {
		return nil
	}

	blockAlign := p.format.BlockAlign()
	alignedLen := len(p.buf) / blockAlign * blockAlign
	if alignedLen == 0 {
		return nil
	}

	payload := make([]byte, alignedLen)
	copy(payload, p.buf[:alignedLen])
	p.buf = append(p.buf[:0], p.buf[alignedLen:]...)

	conditioned := audio.Condition(payload)
	frame = wav.Encode(conditioned, p.format)

	p.seq++
	p.stats.ChunksEmitted++
	p.stats.TotalProcessed += len(conditioned)

	p.log.Debug("Frame %d: %d payload bytes", p.seq, len(conditioned))
	return frame
}

// wireEncode re-wraps raw bytes in the wire encoding ProcessChunk
// expects, so binary and text transports share one validation path.
func wireEncode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

var mimeRatePattern = regexp.MustCompile(`rate=(\d+)`)

// SampleRateFromMIME extracts a declared sample rate from a channel
// part's MIME type (e.g. "audio/pcm;rate=24000"). Returns 0 when the
// type carries no rate.
func SampleRateFromMIME(mimeType string) int {
	m := mimeRatePattern.FindStringSubmatch(mimeType)
	if m == nil {
		return 0
	}
	rate, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return rate
}
