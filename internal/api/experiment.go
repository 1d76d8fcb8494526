package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/ashureev/fixedness-lab/internal/game"
	"github.com/ashureev/fixedness-lab/internal/identity"
	"github.com/ashureev/fixedness-lab/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// ExperimentHandler handles the play and reporting endpoints.
type ExperimentHandler struct {
	*Handler
	limiter *RateLimiter
}

// NewExperimentHandler creates the experiment handler. A nil limiter
// disables rate limiting.
func NewExperimentHandler(base *Handler, limiter *RateLimiter) *ExperimentHandler {
	return &ExperimentHandler{Handler: base, limiter: limiter}
}

// RegisterRoutes registers experiment routes.
func (h *ExperimentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/command", h.Command)
		r.Post("/session/end", h.EndSession)
		r.Get("/session", h.GetSession)
		r.Get("/worlds", h.ListWorlds)
		r.Get("/summaries/export", h.ExportSummaries)
	})
}

type commandRequest struct {
	DeviceID string              `json:"deviceId"`
	Command  string              `json:"command"`
	WorldID  string              `json:"worldId"`
	Variant  string              `json:"variant"`
	Metrics  domain.InputMetrics `json:"metrics"`
}

type sessionRequest struct {
	DeviceID string `json:"deviceId"`
	WorldID  string `json:"worldId"`
	Variant  string `json:"variant"`
}

// sessionKey resolves the owner of a request: a supplied device id wins
// over the cookie identity, and a missing variant is assigned.
func sessionKey(r *http.Request, deviceID, worldID, variant string) (domain.SessionKey, bool) {
	key := domain.SessionKey{
		DeviceID: identity.ResolveDeviceID(r.Context(), deviceID),
		WorldID:  strings.TrimSpace(worldID),
	}
	if key.DeviceID == "" || key.WorldID == "" {
		return key, false
	}
	if strings.TrimSpace(variant) == "" {
		key.Variant = identity.AssignVariant(key.DeviceID, key.WorldID)
		return key, true
	}
	v, err := domain.ParseVariant(strings.TrimSpace(variant))
	if err != nil {
		return key, false
	}
	key.Variant = v
	return key, true
}

// Command runs one player command.
func (h *ExperimentHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Command) == "" || strings.TrimSpace(req.WorldID) == "" {
		Error(w, http.StatusBadRequest, "command and worldId are required")
		return
	}
	key, ok := sessionKey(r, req.DeviceID, req.WorldID, req.Variant)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid deviceId or variant")
		return
	}
	if h.limiter != nil && !h.limiter.Allow(key.DeviceID) {
		Error(w, http.StatusTooManyRequests, "too many commands, slow down")
		return
	}

	res, err := h.exp.HandleCommand(r.Context(), game.CommandRequest{
		DeviceID: key.DeviceID,
		WorldID:  key.WorldID,
		Variant:  key.Variant,
		Command:  req.Command,
		Metrics:  req.Metrics,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// EndSession ends the caller's session and returns its summary.
func (h *ExperimentHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key, ok := sessionKey(r, req.DeviceID, req.WorldID, req.Variant)
	if !ok {
		Error(w, http.StatusBadRequest, "worldId is required")
		return
	}

	summary, err := h.exp.EndSession(r.Context(), key)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"complete": true,
		"summary":  summary,
	})
}

// GetSession returns the caller's current session.
func (h *ExperimentHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, ok := sessionKey(r, q.Get("deviceId"), q.Get("worldId"), q.Get("variant"))
	if !ok {
		Error(w, http.StatusBadRequest, "worldId is required")
		return
	}

	session, err := h.exp.CurrentSession(r.Context(), key)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

type puzzleView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Objective string `json:"objective"`
}

type worldView struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Setting         string         `json:"setting"`
	AssignedVariant domain.Variant `json:"assignedVariant,omitempty"`
	Puzzles         []puzzleView   `json:"puzzles"`
}

// ListWorlds returns the catalog without solutions or hints.
func (h *ExperimentHandler) ListWorlds(w http.ResponseWriter, r *http.Request) {
	deviceID := identity.DeviceIDFromContext(r.Context())

	worlds := h.exp.Catalog().Worlds()
	out := make([]worldView, 0, len(worlds))
	for _, world := range worlds {
		view := worldView{ID: world.ID, Name: world.Name, Setting: world.Setting}
		if deviceID != "" {
			view.AssignedVariant = identity.AssignVariant(deviceID, world.ID)
		}
		for _, p := range world.Puzzles {
			view.Puzzles = append(view.Puzzles, puzzleView{ID: p.ID, Name: p.Name, Objective: p.Objective})
		}
		out = append(out, view)
	}
	JSON(w, http.StatusOK, map[string]interface{}{"worlds": out})
}

// ExportSummaries streams every stored summary as CSV.
func (h *ExperimentHandler) ExportSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.exp.Summaries(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="session-summaries.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := metrics.WriteCSV(w, summaries); err != nil {
		h.logger.Error("Failed to write summary export", "error", err)
	}
}
