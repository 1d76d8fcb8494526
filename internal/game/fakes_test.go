package game

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/ashureev/fixedness-lab/internal/store"
)

var errFakeStore = errors.New("fake store failure")

// fakeRepo is an in-memory store.Repository with switchable failures.
type fakeRepo struct {
	mu           sync.Mutex
	sessions     map[string]*domain.Session
	states       map[string]map[string]domain.PuzzleState
	interactions map[string]*domain.Interaction
	order        []string
	summaries    map[string]*domain.SessionSummary

	failGetActive   bool
	failCreate      bool
	raceCreate      bool
	failInsert      bool
	failUpsertState bool
	failHistory     bool
	failComplete    bool

	// stallHistory makes UpdateSessionHistory block until ctx is done.
	stallHistory bool

	upserts   int
	completes int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions:     make(map[string]*domain.Session),
		states:       make(map[string]map[string]domain.PuzzleState),
		interactions: make(map[string]*domain.Interaction),
		summaries:    make(map[string]*domain.SessionSummary),
	}
}

func copySession(s *domain.Session, states map[string]domain.PuzzleState) *domain.Session {
	out := *s
	out.History = append([]domain.Turn(nil), s.History...)
	out.PuzzleStates = make(map[string]domain.PuzzleState, len(states))
	for k, v := range states {
		out.PuzzleStates[k] = v
	}
	return &out
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

func (f *fakeRepo) findSession(key domain.SessionKey, activeOnly bool) *domain.Session {
	var found *domain.Session
	for _, s := range f.sessions {
		if s.Key() != key || (activeOnly && s.IsComplete) {
			continue
		}
		if found == nil || s.StartTime.After(found.StartTime) {
			found = s
		}
	}
	return found
}

func (f *fakeRepo) GetActiveSession(_ context.Context, key domain.SessionKey) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGetActive {
		return nil, errFakeStore
	}
	if s := f.findSession(key, true); s != nil {
		return copySession(s, f.states[s.ID]), nil
	}
	return nil, nil
}

func (f *fakeRepo) GetLatestSession(_ context.Context, key domain.SessionKey) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.findSession(key, false); s != nil {
		return copySession(s, f.states[s.ID]), nil
	}
	return nil, nil
}

func (f *fakeRepo) GetSession(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		return copySession(s, f.states[id]), nil
	}
	return nil, nil
}

func (f *fakeRepo) CreateSession(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errFakeStore
	}
	if f.raceCreate {
		// Simulate a concurrent request winning the insert.
		f.raceCreate = false
		winner := copySession(session, nil)
		winner.ID = "winner"
		f.sessions[winner.ID] = winner
		return store.ErrSessionExists
	}
	if f.findSession(session.Key(), true) != nil {
		return store.ErrSessionExists
	}
	f.sessions[session.ID] = copySession(session, nil)
	return nil
}

func (f *fakeRepo) UpdateSessionHistory(ctx context.Context, id string, history []domain.Turn, lastActive time.Time) error {
	f.mu.Lock()
	stall := f.stallHistory
	f.mu.Unlock()
	if stall {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHistory {
		return errFakeStore
	}
	s, ok := f.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.History = append([]domain.Turn(nil), history...)
	s.LastActiveTime = lastActive
	return nil
}

func (f *fakeRepo) MarkSessionComplete(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.IsComplete = true
	}
	return nil
}

func (f *fakeRepo) ListIdleSessions(_ context.Context, idle time.Duration) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	threshold := time.Now().Add(-idle)
	var out []*domain.Session
	for _, s := range f.sessions {
		if !s.IsComplete && s.LastActiveTime.Before(threshold) {
			out = append(out, copySession(s, nil))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) GetPuzzleStates(_ context.Context, sessionID string) (map[string]domain.PuzzleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.PuzzleState)
	for k, v := range f.states[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRepo) UpsertPuzzleState(_ context.Context, sessionID string, state domain.PuzzleState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsertState {
		return errFakeStore
	}
	f.upserts++
	if f.states[sessionID] == nil {
		f.states[sessionID] = make(map[string]domain.PuzzleState)
	}
	f.states[sessionID][state.PuzzleID] = state
	return nil
}

func (f *fakeRepo) InsertInteraction(_ context.Context, it *domain.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return errFakeStore
	}
	cp := *it
	f.interactions[it.ID] = &cp
	f.order = append(f.order, it.ID)
	return nil
}

func (f *fakeRepo) CompleteInteraction(_ context.Context, id, response string, responseTimeMs int64, pctx domain.PuzzleContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failComplete {
		return errFakeStore
	}
	it, ok := f.interactions[id]
	if !ok || it.Responded {
		return store.ErrNotFound
	}
	f.completes++
	it.Response = response
	it.ResponseTimeMs = responseTimeMs
	it.PuzzleContext = pctx
	it.Responded = true
	return nil
}

func (f *fakeRepo) ListInteractions(_ context.Context, sessionID string) ([]*domain.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Interaction
	for _, id := range f.order {
		if it := f.interactions[id]; it.SessionID == sessionID {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertSummary(_ context.Context, summary *domain.SessionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.summaries[summary.SessionID]; ok {
		return store.ErrSummaryExists
	}
	cp := *summary
	f.summaries[summary.SessionID] = &cp
	return nil
}

func (f *fakeRepo) GetSummary(_ context.Context, sessionID string) (*domain.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.summaries[sessionID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeRepo) ListSummaries(context.Context) ([]*domain.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.SessionSummary
	for _, s := range f.summaries {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRepo) onlyInteraction() *domain.Interaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.order) != 1 {
		return nil
	}
	cp := *f.interactions[f.order[0]]
	return &cp
}

// fakeEngine replies from a script and records what it was sent.
type fakeEngine struct {
	mu        sync.Mutex
	replies   []string
	err       error
	calls     int
	systems   []string
	histories [][]domain.Turn
	messages  []string
}

func (e *fakeEngine) GenerateReply(_ context.Context, systemPrompt string, history []domain.Turn, userMessage string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.systems = append(e.systems, systemPrompt)
	e.histories = append(e.histories, append([]domain.Turn(nil), history...))
	e.messages = append(e.messages, userMessage)
	if e.err != nil {
		return "", e.err
	}
	if len(e.replies) == 0 {
		return "Nothing much happens here.", nil
	}
	reply := e.replies[0]
	e.replies = e.replies[1:]
	return reply, nil
}

var _ store.Repository = (*fakeRepo)(nil)
