// Package api provides HTTP handlers for the lab API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/fixedness-lab/internal/catalog"
	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/ashureev/fixedness-lab/internal/game"
)

// Experiment is the game surface the handlers drive.
type Experiment interface {
	HandleCommand(ctx context.Context, req game.CommandRequest) (*game.CommandResult, error)
	EndSession(ctx context.Context, key domain.SessionKey) (*domain.SessionSummary, error)
	CurrentSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)
	Summaries(ctx context.Context) ([]*domain.SessionSummary, error)
	Catalog() *catalog.Catalog
}

// Handler provides common handler utilities.
type Handler struct {
	exp    Experiment
	logger *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(exp Experiment, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{exp: exp, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// serviceError maps a game error to a generic client response. The detail
// stays in the server log.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidRequest):
		Error(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, game.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "session not found")
	default:
		h.logger.Error("Request failed", "error", err, "path", r.URL.Path)
		Error(w, http.StatusInternalServerError, "something went wrong, please try again")
	}
}
