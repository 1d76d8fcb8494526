package game

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"
)

func TestTranscriptWritesPerSessionNDJSON(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)

	dir := t.TempDir()
	logger, err := NewTranscriptLogger(TranscriptConfig{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}

	logger.Log(TranscriptEvent{DeviceID: "dev_1", SessionID: "sess-1", EventType: EventCommand, Content: "look around"})
	logger.Log(TranscriptEvent{DeviceID: "dev_1", SessionID: "sess-1", EventType: EventReply, Content: "A dim corridor."})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dev_1", "sess-1.ndjson"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var got TranscriptEvent
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.EventType != EventReply || got.Content != "A dim corridor." || got.Timestamp.IsZero() {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestTranscriptLogAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)

	logger, err := NewTranscriptLogger(TranscriptConfig{Enabled: true, Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	_ = logger.Close()
	_ = logger.Close()
	logger.Log(TranscriptEvent{DeviceID: "dev_1", SessionID: "late"})
}

func TestTranscriptPathsStayInsideDir(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)

	dir := t.TempDir()
	logger, err := NewTranscriptLogger(TranscriptConfig{Enabled: true, Dir: dir, QueueSize: 4}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	logger.Log(TranscriptEvent{DeviceID: "../../etc", SessionID: "../passwd", EventType: EventCommand})
	_ = logger.Close()

	if _, err := os.Stat(filepath.Join(dir, "______etc", "___passwd.ndjson")); err != nil {
		t.Fatalf("expected sanitized transcript path: %v", err)
	}
}

func TestDisabledTranscriptIsNoop(t *testing.T) {
	logger, err := NewTranscriptLogger(TranscriptConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	logger.Log(TranscriptEvent{})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
