package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.SampleRate != 24000 || c.Channels != 1 || c.BitsPerSample != 16 {
		t.Errorf("format defaults: %d/%d/%d", c.SampleRate, c.Channels, c.BitsPerSample)
	}
	if c.TurnTimeout != 30*time.Second {
		t.Errorf("timeout = %v", c.TurnTimeout)
	}

	pc := c.ProcessorConfig()
	if pc.MinBuffer != 150*time.Millisecond || pc.MaxBuffer != 2*time.Second {
		t.Errorf("thresholds: %v / %v", pc.MinBuffer, pc.MaxBuffer)
	}
	if got := pc.Format.BytesForDuration(int(pc.MinBuffer / time.Millisecond)); got != 7200 {
		t.Errorf("min buffer bytes = %d, want 7200", got)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("TURN_TIMEOUT", "5s")
	t.Setenv("POLL_INTERVAL", "50") // bare number means milliseconds
	t.Setenv("MIN_BUFFER_MS", "100")
	t.Setenv("LISTEN_ADDR", ":9999")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.TurnTimeout != 5*time.Second {
		t.Errorf("timeout = %v", c.TurnTimeout)
	}
	if c.PollInterval != 50*time.Millisecond {
		t.Errorf("poll = %v", c.PollInterval)
	}
	if c.MinBufferMs != 100 || c.ListenAddr != ":9999" {
		t.Errorf("got %+v", c)
	}
}

func TestLoad_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("USE_VERTEX", "")

	if _, err := Load(); err == nil {
		t.Fatal("want error with no API key and no vertex")
	}
}

func TestLoad_RejectsInvertedThresholds(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("MIN_BUFFER_MS", "500")
	t.Setenv("MAX_BUFFER_MS", "100")

	if _, err := Load(); err == nil {
		t.Fatal("want error for max < min")
	}
}
