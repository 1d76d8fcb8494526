package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.SessionIdleTTL != 30*time.Minute {
		t.Errorf("unexpected idle TTL %v", cfg.SessionIdleTTL)
	}
	if !cfg.Transcript.Enabled || cfg.Transcript.QueueSize != 1000 {
		t.Errorf("unexpected transcript config %+v", cfg.Transcript)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode without FRONTEND_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PORT", "9000")
	t.Setenv("NARRATIVE_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_REQUESTS", "10")
	t.Setenv("TRANSCRIPT_LOG_ENABLED", "off")
	t.Setenv("TRANSCRIPT_LOG_QUEUE_SIZE", "-3")
	t.Setenv("SESSION_IDLE_TTL", "not-a-duration")
	t.Setenv("FRONTEND_URL", "https://lab.example.org")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9000" || cfg.Narrative.Timeout != 5*time.Second || cfg.RateLimit.Requests != 10 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Transcript.Enabled {
		t.Error("expected transcripts disabled")
	}
	if cfg.Transcript.QueueSize != 1000 {
		t.Errorf("expected invalid queue size to fall back, got %d", cfg.Transcript.QueueSize)
	}
	if cfg.SessionIdleTTL != 30*time.Minute {
		t.Errorf("expected unparsable duration to fall back, got %v", cfg.SessionIdleTTL)
	}
	if cfg.IsDevelopment() {
		t.Error("expected production mode")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without GEMINI_API_KEY")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
