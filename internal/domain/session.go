// Package domain contains core domain types for the fixedness lab.
package domain

import (
	"fmt"
	"time"
)

// Variant is the experimental condition a session runs under.
type Variant string

const (
	// VariantA is the control condition: no hints, no priming.
	VariantA Variant = "A"
	// VariantB is the experimental condition: pre-exposure and environmental priming.
	VariantB Variant = "B"
)

// Valid returns true for the two known variants.
func (v Variant) Valid() bool {
	return v == VariantA || v == VariantB
}

// ParseVariant accepts "A"/"B" in either case.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "A", "a":
		return VariantA, nil
	case "B", "b":
		return VariantB, nil
	}
	return "", fmt.Errorf("unknown variant %q", s)
}

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is a single entry in the conversation history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SessionKey identifies the owner of a session. At most one active session
// exists per key.
type SessionKey struct {
	DeviceID string
	WorldID  string
	Variant  Variant
}

func (k SessionKey) String() string {
	return k.DeviceID + ":" + k.WorldID + ":" + string(k.Variant)
}

// Session holds the play state of one device in one world and variant.
type Session struct {
	ID             string                 `json:"sessionId"`
	DeviceID       string                 `json:"deviceId"`
	WorldID        string                 `json:"worldId"`
	Variant        Variant                `json:"variant"`
	History        []Turn                 `json:"history"`
	PuzzleStates   map[string]PuzzleState `json:"puzzleStates"`
	IsComplete     bool                   `json:"isComplete"`
	StartTime      time.Time              `json:"startTime"`
	LastActiveTime time.Time              `json:"lastActiveTime"`
}

// Key returns the owner key of the session.
func (s *Session) Key() SessionKey {
	return SessionKey{DeviceID: s.DeviceID, WorldID: s.WorldID, Variant: s.Variant}
}

// AppendTurn adds a turn to the history and bumps the activity time.
func (s *Session) AppendTurn(role Role, text string, at time.Time) {
	s.History = append(s.History, Turn{Role: role, Text: text})
	s.LastActiveTime = at
}

// RecentTurns returns the last n turns from history.
func (s *Session) RecentTurns(n int) []Turn {
	if n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// StateOf returns the stored state for a puzzle, if any.
func (s *Session) StateOf(puzzleID string) (PuzzleState, bool) {
	st, ok := s.PuzzleStates[puzzleID]
	return st, ok
}
