package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/ashureev/fixedness-lab/internal/game"
	"github.com/ashureev/fixedness-lab/internal/identity"
	"github.com/coder/websocket"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 16 << 10
)

// Player is the game surface the console drives.
type Player interface {
	HandleCommand(ctx context.Context, req game.CommandRequest) (*game.CommandResult, error)
	EndSession(ctx context.Context, key domain.SessionKey) (*domain.SessionSummary, error)
}

// Limiter decides whether a device may send another command.
type Limiter interface {
	Allow(key string) bool
}

// WebSocketHandler serves the play console.
type WebSocketHandler struct {
	player        Player
	sm            *SessionManager
	limiter       Limiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(player Player, sm *SessionManager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		player:        player,
		sm:            sm,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// SetLimiter rate limits commands per device.
func (h *WebSocketHandler) SetLimiter(l Limiter) {
	h.limiter = l
}

// Message types exchanged over the console.
const (
	msgCommand  = "command"
	msgEnd      = "end"
	msgPing     = "ping"
	msgPong     = "pong"
	msgReply    = "reply"
	msgComplete = "complete"
	msgError    = "error"
)

type inMessage struct {
	Type    string              `json:"type"`
	Content string              `json:"content,omitempty"`
	Metrics domain.InputMetrics `json:"metrics"`
}

type outMessage struct {
	Type          string                 `json:"type"`
	Reply         string                 `json:"reply,omitempty"`
	Complete      bool                   `json:"complete,omitempty"`
	PuzzleContext *domain.PuzzleContext  `json:"puzzleContext,omitempty"`
	SessionID     string                 `json:"sessionId,omitempty"`
	Summary       *domain.SessionSummary `json:"summary,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade. The session is
// addressed by the world and variant query parameters; a missing variant
// is assigned from the device.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(r)
	if !ok {
		http.Error(w, "world and a valid device are required", http.StatusBadRequest)
		return
	}
	log := slog.With("device_id", key.DeviceID, "world_id", key.WorldID, "variant", key.Variant)
	log.Info("Console connection request", "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("Failed to accept WebSocket", "error", err)
		return
	}
	ws.SetReadLimit(maxMessageSize)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "console closed"); closeErr != nil {
			log.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	h.sm.Register(key, ws)
	defer h.sm.Unregister(key, ws)

	h.readLoop(r.Context(), ws, key, log)
	log.Info("Console session ended")
}

func sessionKey(r *http.Request) (domain.SessionKey, bool) {
	q := r.URL.Query()
	key := domain.SessionKey{
		DeviceID: identity.ResolveDeviceID(r.Context(), q.Get("deviceId")),
		WorldID:  strings.TrimSpace(q.Get("world")),
	}
	if key.DeviceID == "" || key.WorldID == "" {
		return key, false
	}
	if v := strings.TrimSpace(q.Get("variant")); v != "" {
		parsed, err := domain.ParseVariant(v)
		if err != nil {
			return key, false
		}
		key.Variant = parsed
		return key, true
	}
	key.Variant = identity.AssignVariant(key.DeviceID, key.WorldID)
	return key, true
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop handles messages one at a time, so a session's commands are
// processed in arrival order.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, key domain.SessionKey, log *slog.Logger) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.send(ctx, ws, log, outMessage{Type: msgError, Error: "malformed message"})
			continue
		}

		switch msg.Type {
		case msgPing:
			h.send(ctx, ws, log, outMessage{Type: msgPong})
		case msgCommand:
			if done := h.command(ctx, ws, key, msg, log); done {
				return
			}
		case msgEnd:
			summary, err := h.player.EndSession(ctx, key)
			if err != nil {
				h.send(ctx, ws, log, outMessage{Type: msgError, Error: clientError(err, log)})
				continue
			}
			h.send(ctx, ws, log, outMessage{Type: msgComplete, Complete: true, SessionID: summary.SessionID, Summary: summary})
			return
		default:
			h.send(ctx, ws, log, outMessage{Type: msgError, Error: "unknown message type"})
		}
	}
}

// command runs one player command and reports whether the session is over.
func (h *WebSocketHandler) command(ctx context.Context, ws *websocket.Conn, key domain.SessionKey, msg inMessage, log *slog.Logger) bool {
	if strings.TrimSpace(msg.Content) == "" {
		h.send(ctx, ws, log, outMessage{Type: msgError, Error: "command is empty"})
		return false
	}
	if h.limiter != nil && !h.limiter.Allow(key.DeviceID) {
		h.send(ctx, ws, log, outMessage{Type: msgError, Error: "too many commands, slow down"})
		return false
	}

	res, err := h.player.HandleCommand(ctx, game.CommandRequest{
		DeviceID: key.DeviceID,
		WorldID:  key.WorldID,
		Variant:  key.Variant,
		Command:  msg.Content,
		Metrics:  msg.Metrics,
	})
	if err != nil {
		h.send(ctx, ws, log, outMessage{Type: msgError, Error: clientError(err, log)})
		return false
	}

	out := outMessage{
		Type:      msgReply,
		Reply:     res.Reply,
		Complete:  res.Complete,
		SessionID: res.SessionID,
		Summary:   res.Summary,
	}
	if res.PuzzleContext.Relevant() {
		pctx := res.PuzzleContext
		out.PuzzleContext = &pctx
	}
	h.send(ctx, ws, log, out)
	return res.Complete
}

func clientError(err error, log *slog.Logger) string {
	switch {
	case errors.Is(err, game.ErrInvalidRequest):
		return "invalid request"
	case errors.Is(err, game.ErrSessionNotFound):
		return "session not found"
	default:
		log.Error("Console command failed", "error", err)
		return "something went wrong, please try again"
	}
}

func (h *WebSocketHandler) send(ctx context.Context, ws *websocket.Conn, log *slog.Logger, msg outMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("Failed to encode console message", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		log.Debug("WebSocket write error", "error", err)
	}
}
