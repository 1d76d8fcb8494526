package domain

import "time"

// FixednessLevel is the qualitative overall rating of a session.
type FixednessLevel string

const (
	FixednessHigh     FixednessLevel = "High"
	FixednessModerate FixednessLevel = "Moderate"
	FixednessLow      FixednessLevel = "Low"
)

// Puzzle outcomes recorded in summaries.
const (
	OutcomeSolved   = "solved"
	OutcomeUnsolved = "unsolved"
	OutcomeTimeout  = "timeout"
)

// Reasons a session ended.
const (
	EndReasonExit = "exit"
	EndReasonIdle = "idle"
)

// PuzzleAttemptSummary aggregates one puzzle's interactions in a session.
type PuzzleAttemptSummary struct {
	PuzzleID               string     `json:"puzzleId"`
	PuzzleName             string     `json:"puzzleName,omitempty"`
	TotalAttempts          int        `json:"totalAttempts"`
	ConventionalAttempts   int        `json:"conventionalAttempts"`
	UnconventionalAttempts int        `json:"unconventionalAttempts"`
	HesitationCount        int        `json:"hesitationCount"`
	MeanHesitationMs       float64    `json:"meanHesitationMs"`
	FirstEncounter         *time.Time `json:"firstEncounter,omitempty"`
	SolvedAt               *time.Time `json:"solvedAt,omitempty"`
	TimeToSolutionMs       *int64     `json:"timeToSolutionMs,omitempty"`
	Outcome                string     `json:"outcome"`
}

// HesitationStats are session-wide typing pause statistics.
type HesitationStats struct {
	Count          int     `json:"count"`
	MeanDurationMs float64 `json:"meanDurationMs"`
	MaxDurationMs  float64 `json:"maxDurationMs"`
}

// SessionSummary is written once when a session ends.
type SessionSummary struct {
	ID             string                 `json:"id"`
	SessionID      string                 `json:"sessionId"`
	DeviceID       string                 `json:"deviceId"`
	WorldID        string                 `json:"worldId"`
	Variant        Variant                `json:"variant"`
	EndReason      string                 `json:"endReason"`
	CreatedAt      time.Time              `json:"createdAt"`
	Puzzles        []PuzzleAttemptSummary `json:"puzzles"`
	TotalCommands  int                    `json:"totalCommands"`
	SolveRate      float64                `json:"solveRate"`
	MeanAttempts   float64                `json:"meanAttempts"`
	FixednessLevel FixednessLevel         `json:"fixednessLevel"`
	Hesitation     HesitationStats        `json:"hesitation"`
	CommandTypes   map[string]int         `json:"commandTypes"`
}
