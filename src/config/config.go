package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/mimi-labs/voicestream/src/stream"
	"github.com/mimi-labs/voicestream/src/wav"
)

// Config is the full runtime configuration, loaded once at startup.
type Config struct {
	ListenAddr string

	// Audio format of emitted frames until a stream reports otherwise.
	SampleRate    int
	Channels      int
	BitsPerSample int

	// Accumulator thresholds.
	MinBufferMs    int
	MaxBufferMs    int
	FingerprintCap int

	// Turn pacing.
	TurnTimeout  time.Duration
	PollInterval time.Duration

	TranscriptCap int

	// Speech channel (Gemini Live).
	GeminiAPIKey  string
	LiveModel     string
	Voice         string
	LanguageCode  string
	SystemPrompt  string
	UseVertex     bool
	VertexProject string
	VertexRegion  string

	// Text classifier.
	ClassifierModel   string
	ClassifierTimeout time.Duration

	// Menu catalog JSON file; empty means an empty menu.
	MenuFile string
}

// Load reads .env if present, then the environment, applying defaults
// for everything unset.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	c := &Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		SampleRate:        getEnvInt("AUDIO_SAMPLE_RATE", 24000),
		Channels:          getEnvInt("AUDIO_CHANNELS", 1),
		BitsPerSample:     getEnvInt("AUDIO_BITS", 16),
		MinBufferMs:       getEnvInt("MIN_BUFFER_MS", 150),
		MaxBufferMs:       getEnvInt("MAX_BUFFER_MS", 2000),
		FingerprintCap:    getEnvInt("FINGERPRINT_CAP", stream.DefaultFingerprintCap),
		TurnTimeout:       getEnvDuration("TURN_TIMEOUT", 30*time.Second),
		PollInterval:      getEnvDuration("POLL_INTERVAL", 20*time.Millisecond),
		TranscriptCap:     getEnvInt("TRANSCRIPT_CAP", 10),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		LiveModel:         getEnv("GEMINI_LIVE_MODEL", ""),
		Voice:             getEnv("GEMINI_VOICE", ""),
		LanguageCode:      getEnv("GEMINI_LANGUAGE", ""),
		SystemPrompt:      os.Getenv("AGENT_SYSTEM_PROMPT"),
		UseVertex:         getEnvBool("USE_VERTEX", false),
		VertexProject:     os.Getenv("VERTEX_PROJECT"),
		VertexRegion:      getEnv("VERTEX_REGION", "us-central1"),
		ClassifierModel:   getEnv("CLASSIFIER_MODEL", ""),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		MenuFile:          os.Getenv("MENU_FILE"),
	}

	if c.GeminiAPIKey == "" && !c.UseVertex {
		return nil, fmt.Errorf("GEMINI_API_KEY is required unless USE_VERTEX is set")
	}
	if c.MinBufferMs <= 0 || c.MaxBufferMs < c.MinBufferMs {
		return nil, fmt.Errorf("invalid buffer thresholds: min %dms, max %dms", c.MinBufferMs, c.MaxBufferMs)
	}
	return c, nil
}

// Format returns the configured emission audio format.
func (c *Config) Format() wav.Format {
	return wav.Format{
		Channels:      c.Channels,
		SampleRate:    c.SampleRate,
		BitsPerSample: c.BitsPerSample,
	}
}

// ProcessorConfig maps the loaded thresholds onto a stream config.
func (c *Config) ProcessorConfig() stream.Config {
	f := c.Format()
	return stream.Config{
		Format:         f,
		MinBuffer:      time.Duration(c.MinBufferMs) * time.Millisecond,
		MaxBuffer:      time.Duration(c.MaxBufferMs) * time.Millisecond,
		FingerprintCap: c.FingerprintCap,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
