// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

var (
	// ErrSessionExists is returned when an active session already exists
	// for the same device, world and variant.
	ErrSessionExists = errors.New("active session already exists")
	// ErrSummaryExists is returned when a session already has a summary.
	ErrSummaryExists = errors.New("session summary already exists")
	// ErrNotFound is returned by updates that match no record.
	ErrNotFound = errors.New("record not found")
)

// Repository defines the interface for persisting experiment data.
// Lookups return (nil, nil) when nothing matches.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// GetActiveSession returns the incomplete session for key, with its puzzle states.
	GetActiveSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)

	// GetLatestSession returns the most recently started session for key, complete or not.
	GetLatestSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)

	// GetSession returns a session by id, with its puzzle states.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// CreateSession inserts a new active session. It returns ErrSessionExists
	// if another active session for the same key won the race.
	CreateSession(ctx context.Context, session *domain.Session) error

	// UpdateSessionHistory replaces the conversation history and activity time.
	UpdateSessionHistory(ctx context.Context, sessionID string, history []domain.Turn, lastActive time.Time) error

	// MarkSessionComplete flags a session as complete.
	MarkSessionComplete(ctx context.Context, sessionID string, at time.Time) error

	// ListIdleSessions returns active sessions with no activity for longer than idle.
	ListIdleSessions(ctx context.Context, idle time.Duration) ([]*domain.Session, error)

	// GetPuzzleStates returns all puzzle states of a session keyed by puzzle id.
	GetPuzzleStates(ctx context.Context, sessionID string) (map[string]domain.PuzzleState, error)

	// UpsertPuzzleState writes one puzzle state. The stored record never
	// loses attempts, a solve, or an already-set timestamp.
	UpsertPuzzleState(ctx context.Context, sessionID string, state domain.PuzzleState) error

	// InsertInteraction appends an interaction pre-image.
	InsertInteraction(ctx context.Context, interaction *domain.Interaction) error

	// CompleteInteraction records the response fields of an interaction.
	// It applies at most once; later calls return ErrNotFound.
	CompleteInteraction(ctx context.Context, interactionID string, response string, responseTimeMs int64, pctx domain.PuzzleContext) error

	// ListInteractions returns a session's interactions in timestamp order.
	ListInteractions(ctx context.Context, sessionID string) ([]*domain.Interaction, error)

	// InsertSummary stores a session summary. It returns ErrSummaryExists
	// if the session already has one.
	InsertSummary(ctx context.Context, summary *domain.SessionSummary) error

	// GetSummary returns the summary for a session.
	GetSummary(ctx context.Context, sessionID string) (*domain.SessionSummary, error)

	// ListSummaries returns all summaries, oldest first.
	ListSummaries(ctx context.Context) ([]*domain.SessionSummary, error)
}
