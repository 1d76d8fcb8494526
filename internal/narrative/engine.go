// Package narrative produces in-world replies to player commands.
package narrative

import (
	"context"
	"errors"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

// ErrEmptyReply is returned when the engine produced no text.
var ErrEmptyReply = errors.New("narrative engine returned an empty reply")

// PlaceholderOpening is inserted ahead of a history that starts with a
// model turn, since the engine expects the conversation to open with the user.
const PlaceholderOpening = "Begin."

// Engine generates the next narrative reply. history holds the prior turns
// and must begin with a user turn; userMessage is the new command.
type Engine interface {
	GenerateReply(ctx context.Context, systemPrompt string, history []domain.Turn, userMessage string) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, systemPrompt string, history []domain.Turn, userMessage string) (string, error)

// GenerateReply calls f.
func (f EngineFunc) GenerateReply(ctx context.Context, systemPrompt string, history []domain.Turn, userMessage string) (string, error) {
	return f(ctx, systemPrompt, history, userMessage)
}

// EnsureLeadingUserTurn returns history with a placeholder user turn in
// front when the first turn is not from the user. The input is not modified.
func EnsureLeadingUserTurn(history []domain.Turn) []domain.Turn {
	if len(history) == 0 || history[0].Role == domain.RoleUser {
		return history
	}
	out := make([]domain.Turn, 0, len(history)+1)
	out = append(out, domain.Turn{Role: domain.RoleUser, Text: PlaceholderOpening})
	return append(out, history...)
}
