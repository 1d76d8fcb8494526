package domain

import "time"

// Hesitation is a pause in typing, measured by the client.
type Hesitation struct {
	DurationMs float64 `json:"duration"`
	Position   int     `json:"position"`
}

// InputMetrics are the keystroke-level measurements sent with a command.
type InputMetrics struct {
	KeystrokeTimings []float64    `json:"keystrokeTimings,omitempty"`
	CorrectionCount  int          `json:"correctionCount"`
	Hesitations      []Hesitation `json:"hesitations,omitempty"`
	TotalDurationMs  float64      `json:"totalDuration"`
	CommandLength    int          `json:"commandLength"`
}

// Interaction is the append-only log record of one command. It is created
// before the narrative call and updated exactly once with the response.
type Interaction struct {
	ID             string        `json:"id"`
	DeviceID       string        `json:"deviceId"`
	SessionID      string        `json:"sessionId,omitempty"`
	WorldID        string        `json:"worldId"`
	Variant        Variant       `json:"variant"`
	Command        string        `json:"command"`
	Response       string        `json:"response,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	ResponseTimeMs int64         `json:"responseTime,omitempty"`
	Metrics        InputMetrics  `json:"metrics"`
	PuzzleContext  PuzzleContext `json:"puzzleContext"`
	Responded      bool          `json:"-"`
}
