// Package game runs the command loop of the experiment: it resolves the
// player's session, asks the narrative engine for a reply, and records what
// the command meant for each puzzle.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/fixedness-lab/internal/catalog"
	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/ashureev/fixedness-lab/internal/metrics"
	"github.com/ashureev/fixedness-lab/internal/narrative"
	"github.com/ashureev/fixedness-lab/internal/puzzle"
	"github.com/ashureev/fixedness-lab/internal/store"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidRequest marks a request that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionInit marks a failure to load or create the session.
	ErrSessionInit = errors.New("session initialization failed")
	// ErrNarrative marks a failed narrative engine call.
	ErrNarrative = errors.New("narrative generation failed")
	// ErrSessionNotFound is returned when no session matches a key.
	ErrSessionNotFound = errors.New("session not found")
)

// Replies for the session-ending commands.
const (
	endedReply    = "You step away. Your session has ended. Thank you for playing."
	noSessionText = "There is no session in progress."
)

// CommandRequest is one player command.
type CommandRequest struct {
	DeviceID string
	WorldID  string
	Variant  domain.Variant
	Command  string
	Metrics  domain.InputMetrics
}

// Key returns the session key the request addresses.
func (r CommandRequest) Key() domain.SessionKey {
	return domain.SessionKey{DeviceID: r.DeviceID, WorldID: r.WorldID, Variant: r.Variant}
}

// CommandResult is returned to the client.
type CommandResult struct {
	Reply         string                 `json:"reply"`
	Complete      bool                   `json:"complete"`
	PuzzleContext domain.PuzzleContext   `json:"puzzleContext"`
	SessionID     string                 `json:"sessionId,omitempty"`
	Summary       *domain.SessionSummary `json:"summary,omitempty"`
}

// Service orchestrates commands. It holds no per-session memory; every
// request reloads its session from the store.
type Service struct {
	repo       store.Repository
	catalog    *catalog.Catalog
	analyzer   *puzzle.Analyzer
	engine     narrative.Engine
	transcript TranscriptLogger
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	// persistTimeout bounds the best-effort writes that follow a reply.
	persistTimeout time.Duration
}

// DefaultPersistTimeout bounds the writes that follow a narrative reply.
const DefaultPersistTimeout = 5 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithTranscript sets the transcript logger.
func WithTranscript(t TranscriptLogger) Option {
	return func(s *Service) {
		if t != nil {
			s.transcript = t
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPersistTimeout overrides how long the writes that follow a reply
// may take before they are abandoned.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a command orchestrator.
func NewService(repo store.Repository, cat *catalog.Catalog, analyzer *puzzle.Analyzer, engine narrative.Engine, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		catalog:    cat,
		analyzer:   analyzer,
		engine:     engine,
		transcript: NopTranscript(),
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,

		persistTimeout: DefaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the catalog the service plays.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// IsEndCommand reports whether a command ends the session.
func IsEndCommand(command string) bool {
	switch puzzle.Normalize(command) {
	case "exit", "quit":
		return true
	}
	return false
}

func (s *Service) validate(req CommandRequest) (catalog.World, error) {
	switch {
	case strings.TrimSpace(req.Command) == "":
		return catalog.World{}, fmt.Errorf("%w: command is required", ErrInvalidRequest)
	case req.WorldID == "":
		return catalog.World{}, fmt.Errorf("%w: worldId is required", ErrInvalidRequest)
	case req.DeviceID == "":
		return catalog.World{}, fmt.Errorf("%w: deviceId is required", ErrInvalidRequest)
	case !req.Variant.Valid():
		return catalog.World{}, fmt.Errorf("%w: variant must be A or B", ErrInvalidRequest)
	}
	world, ok := s.catalog.World(req.WorldID)
	if !ok {
		return catalog.World{}, fmt.Errorf("%w: unknown world %q", ErrInvalidRequest, req.WorldID)
	}
	return world, nil
}

// HandleCommand runs one command through classification, narration,
// verification and state tracking. Once validation passes the work is
// detached from ctx cancellation so a client navigating away cannot abort
// the narrative call or the persistence that follows it.
func (s *Service) HandleCommand(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	world, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	command := strings.TrimSpace(req.Command)
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With(
		"request_id", middleware.GetReqID(ctx),
		"device_id", req.DeviceID,
		"world_id", req.WorldID,
		"variant", string(req.Variant),
	)

	if IsEndCommand(command) {
		return s.handleEnd(ctx, req.Key(), log)
	}

	started := s.now()
	session, err := s.loadOrCreate(ctx, req.Key(), started)
	if err != nil {
		log.Error("Failed to load session", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}
	log = log.With("session_id", session.ID)

	pctx := s.analyzer.Classify(command, world.Puzzles, session.PuzzleStates)

	interaction := &domain.Interaction{
		ID:            s.newID(),
		DeviceID:      req.DeviceID,
		SessionID:     session.ID,
		WorldID:       req.WorldID,
		Variant:       req.Variant,
		Command:       command,
		Timestamp:     started,
		Metrics:       req.Metrics,
		PuzzleContext: pctx,
	}
	logged := true
	if err := s.repo.InsertInteraction(ctx, interaction); err != nil {
		logged = false
		log.Warn("Failed to record interaction", "error", err)
	}
	s.transcript.Log(TranscriptEvent{
		DeviceID: req.DeviceID, SessionID: session.ID, WorldID: req.WorldID,
		EventType: EventCommand, Content: command, PuzzleContext: &pctx,
	})

	history := narrative.EnsureLeadingUserTurn(session.History)
	systemPrompt := narrative.BuildSystemPrompt(world, req.Variant)
	reply, err := s.engine.GenerateReply(ctx, systemPrompt, history, command)
	if err != nil {
		log.Error("Narrative engine failed", "error", err, "interaction_id", interaction.ID)
		s.transcript.Log(TranscriptEvent{
			DeviceID: req.DeviceID, SessionID: session.ID, WorldID: req.WorldID,
			EventType: EventNarrativeError, Content: err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrNarrative, err)
	}
	replied := s.now()

	verification := s.analyzer.Verify(command, reply, world.Puzzles, pctx.ActivePuzzleID)
	pctx.IsSolutionSuccess = verification.IsSolutionSuccess

	persistCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	s.persistOutcome(persistCtx, log, session, interaction, logged, pctx, command, reply, started, replied)
	cancel()

	s.transcript.Log(TranscriptEvent{
		DeviceID: req.DeviceID, SessionID: session.ID, WorldID: req.WorldID,
		EventType: EventReply, Content: reply, PuzzleContext: &pctx,
	})

	return &CommandResult{
		Reply:         reply,
		PuzzleContext: pctx,
		SessionID:     session.ID,
	}, nil
}

// persistOutcome writes everything that follows a successful reply. Every
// step is best-effort: failures are logged and the reply is still returned.
func (s *Service) persistOutcome(
	ctx context.Context,
	log *slog.Logger,
	session *domain.Session,
	interaction *domain.Interaction,
	logged bool,
	pctx domain.PuzzleContext,
	command, reply string,
	started, replied time.Time,
) {
	session.AppendTurn(domain.RoleUser, command, started)
	session.AppendTurn(domain.RoleModel, reply, replied)
	if err := s.repo.UpdateSessionHistory(ctx, session.ID, session.History, replied); err != nil {
		log.Warn("Failed to save session history", "error", err)
	}

	if pctx.Relevant() {
		var prev *domain.PuzzleState
		if st, ok := session.StateOf(pctx.ActivePuzzleID); ok {
			prev = &st
		}
		next, transition := puzzle.Apply(prev, pctx, replied)
		if transition.Changed() {
			if err := s.repo.UpsertPuzzleState(ctx, session.ID, next); err != nil {
				log.Warn("Failed to save puzzle state", "error", err, "puzzle_id", next.PuzzleID)
			}
		}
		if transition.FirstDiscovery {
			log.Info("Puzzle discovered", "puzzle_id", next.PuzzleID)
		}
		if transition.NewlySolved {
			log.Info("Puzzle solved", "puzzle_id", next.PuzzleID, "attempts", next.Attempts)
		}
	}

	if logged {
		if err := s.repo.CompleteInteraction(ctx, interaction.ID, reply, replied.Sub(started).Milliseconds(), pctx); err != nil {
			log.Warn("Failed to complete interaction", "error", err, "interaction_id", interaction.ID)
		}
	}
}

func (s *Service) loadOrCreate(ctx context.Context, key domain.SessionKey, now time.Time) (*domain.Session, error) {
	session, err := s.repo.GetActiveSession(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	if session != nil {
		return session, nil
	}

	session = &domain.Session{
		ID:             s.newID(),
		DeviceID:       key.DeviceID,
		WorldID:        key.WorldID,
		Variant:        key.Variant,
		History:        []domain.Turn{},
		PuzzleStates:   map[string]domain.PuzzleState{},
		StartTime:      now,
		LastActiveTime: now,
	}
	err = s.repo.CreateSession(ctx, session)
	if errors.Is(err, store.ErrSessionExists) {
		// Another request for the same key created it first.
		session, err = s.repo.GetActiveSession(ctx, key)
		if err == nil && session == nil {
			err = errors.New("active session vanished after create conflict")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("Session started", "session_id", session.ID, "device_id", key.DeviceID, "world_id", key.WorldID, "variant", string(key.Variant))
	return session, nil
}

func (s *Service) handleEnd(ctx context.Context, key domain.SessionKey, log *slog.Logger) (*CommandResult, error) {
	summary, err := s.EndSession(ctx, key)
	if errors.Is(err, ErrSessionNotFound) {
		return &CommandResult{Reply: noSessionText, Complete: true}, nil
	}
	if err != nil {
		log.Error("Failed to end session", "error", err)
		return nil, err
	}
	return &CommandResult{
		Reply:     endedReply,
		Complete:  true,
		SessionID: summary.SessionID,
		Summary:   summary,
	}, nil
}

// EndSession completes the active session for key and writes its summary.
// Ending an already-ended session returns the stored summary.
func (s *Service) EndSession(ctx context.Context, key domain.SessionKey) (*domain.SessionSummary, error) {
	session, err := s.repo.GetActiveSession(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	if session == nil {
		session, err = s.repo.GetLatestSession(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get latest session: %w", err)
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		existing, err := s.repo.GetSummary(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("get summary: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}
	return s.endSession(ctx, session, domain.EndReasonExit)
}

// buildSummary computes the summary of session without writing anything.
func (s *Service) buildSummary(ctx context.Context, session *domain.Session, reason string) (domain.SessionSummary, error) {
	var (
		interactions []*domain.Interaction
		states       map[string]domain.PuzzleState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		interactions, err = s.repo.ListInteractions(gctx, session.ID)
		return err
	})
	g.Go(func() error {
		var err error
		states, err = s.repo.GetPuzzleStates(gctx, session.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("load session data: %w", err)
	}

	summary := metrics.Summarize(session.ID, interactions, states)
	summary.ID = s.newID()
	summary.DeviceID = session.DeviceID
	summary.WorldID = session.WorldID
	summary.Variant = session.Variant
	summary.EndReason = reason
	summary.CreatedAt = s.now()
	if reason == domain.EndReasonIdle {
		metrics.MarkTimedOut(&summary)
	}
	if world, ok := s.catalog.World(session.WorldID); ok {
		for i := range summary.Puzzles {
			if summary.Puzzles[i].PuzzleName != "" {
				continue
			}
			if p, ok := world.Puzzle(summary.Puzzles[i].PuzzleID); ok {
				summary.Puzzles[i].PuzzleName = p.Name
			}
		}
	}
	return summary, nil
}

// PreviewSummary recomputes the summary of a session from its stored
// interactions. Nothing is written and the session stays open.
func (s *Service) PreviewSummary(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	reason := ""
	if session.IsComplete {
		if stored, err := s.repo.GetSummary(ctx, sessionID); err == nil && stored != nil {
			reason = stored.EndReason
		}
	}
	summary, err := s.buildSummary(ctx, session, reason)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Service) endSession(ctx context.Context, session *domain.Session, reason string) (*domain.SessionSummary, error) {
	summary, err := s.buildSummary(ctx, session, reason)
	if err != nil {
		return nil, err
	}

	result := &summary
	if err := s.repo.InsertSummary(ctx, result); err != nil {
		if !errors.Is(err, store.ErrSummaryExists) {
			return nil, fmt.Errorf("insert summary: %w", err)
		}
		stored, getErr := s.repo.GetSummary(ctx, session.ID)
		if getErr != nil || stored == nil {
			return nil, fmt.Errorf("load existing summary: %w", errors.Join(err, getErr))
		}
		result = stored
	}

	if err := s.repo.MarkSessionComplete(ctx, session.ID, summary.CreatedAt); err != nil {
		return nil, fmt.Errorf("mark session complete: %w", err)
	}

	s.logger.Info("Session ended",
		"session_id", session.ID,
		"device_id", session.DeviceID,
		"end_reason", result.EndReason,
		"fixedness", string(result.FixednessLevel),
		"solve_rate", result.SolveRate,
	)
	s.transcript.Log(TranscriptEvent{
		DeviceID: session.DeviceID, SessionID: session.ID, WorldID: session.WorldID,
		EventType: EventSessionEnd, Content: result.EndReason,
	})
	return result, nil
}

// CurrentSession returns the active session for key, or the latest one
// when none is active.
func (s *Service) CurrentSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	session, err := s.repo.GetActiveSession(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	if session == nil {
		session, err = s.repo.GetLatestSession(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get latest session: %w", err)
		}
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseIdleSessions ends every active session idle for longer than idle
// and returns the keys it closed.
func (s *Service) CloseIdleSessions(ctx context.Context, idle time.Duration) ([]domain.SessionKey, error) {
	sessions, err := s.repo.ListIdleSessions(ctx, idle)
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}

	var closed []domain.SessionKey
	for _, session := range sessions {
		if _, err := s.endSession(ctx, session, domain.EndReasonIdle); err != nil {
			s.logger.Error("Failed to close idle session", "error", err, "session_id", session.ID)
			continue
		}
		closed = append(closed, session.Key())
	}
	return closed, nil
}

// Summaries returns all stored summaries.
func (s *Service) Summaries(ctx context.Context) ([]*domain.SessionSummary, error) {
	return s.repo.ListSummaries(ctx)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
