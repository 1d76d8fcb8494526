package game

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

// Transcript event types.
const (
	EventCommand        = "command"
	EventReply          = "reply"
	EventNarrativeError = "narrative_error"
	EventSessionEnd     = "session_end"
)

// TranscriptEvent is one line of a session transcript.
type TranscriptEvent struct {
	Timestamp     time.Time             `json:"ts"`
	DeviceID      string                `json:"deviceId"`
	SessionID     string                `json:"sessionId"`
	WorldID       string                `json:"worldId,omitempty"`
	EventType     string                `json:"eventType"`
	Content       string                `json:"content,omitempty"`
	PuzzleContext *domain.PuzzleContext `json:"puzzleContext,omitempty"`
}

// TranscriptLogger records session transcripts. Log never blocks.
type TranscriptLogger interface {
	Log(event TranscriptEvent)
	Close() error
}

// TranscriptConfig configures the file transcript logger.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

type nopTranscript struct{}

func (nopTranscript) Log(TranscriptEvent) {}
func (nopTranscript) Close() error        { return nil }

// NopTranscript returns a logger that discards everything.
func NopTranscript() TranscriptLogger {
	return nopTranscript{}
}

type fileTranscript struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan TranscriptEvent
	done   chan struct{}
}

// NewTranscriptLogger starts a logger writing <dir>/<deviceId>/<sessionId>.ndjson.
// A disabled config yields a no-op logger.
func NewTranscriptLogger(cfg TranscriptConfig, logger *slog.Logger) (TranscriptLogger, error) {
	if !cfg.Enabled {
		return NopTranscript(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	t := &fileTranscript{
		dir:    cfg.Dir,
		logger: logger,
		queue:  make(chan TranscriptEvent, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go t.run()
	return t, nil
}

func (t *fileTranscript) Log(event TranscriptEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- event:
	default:
		t.logger.Warn("Transcript queue full, dropping event",
			"session_id", event.SessionID,
			"event_type", event.EventType)
	}
}

func (t *fileTranscript) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	<-t.done
	return nil
}

func (t *fileTranscript) run() {
	defer close(t.done)
	for event := range t.queue {
		if err := t.write(event); err != nil {
			t.logger.Warn("Failed to write transcript event",
				"error", err,
				"session_id", event.SessionID)
		}
	}
}

func (t *fileTranscript) write(event TranscriptEvent) error {
	dir := filepath.Join(t.dir, safePathComponent(event.DeviceID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create device directory: %w", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	path := filepath.Join(dir, safePathComponent(event.SessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append transcript: %w", err)
	}
	return f.Close()
}

// safePathComponent keeps client-supplied ids from escaping the transcript
// directory.
func safePathComponent(s string) string {
	if s == "" {
		return "unknown"
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	return clean
}
