package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
	"github.com/ashureev/fixedness-lab/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		world_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		history_json TEXT NOT NULL DEFAULT '[]',
		is_complete INTEGER NOT NULL DEFAULT 0,
		start_time INTEGER NOT NULL,
		last_active_time INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_key
		ON sessions(device_id, world_id, variant) WHERE is_complete = 0;
	CREATE INDEX IF NOT EXISTS idx_sessions_last_active
		ON sessions(last_active_time) WHERE is_complete = 0;

	CREATE TABLE IF NOT EXISTS puzzle_states (
		session_id TEXT NOT NULL,
		puzzle_id TEXT NOT NULL,
		discovered INTEGER NOT NULL DEFAULT 0,
		first_discovered_at INTEGER,
		attempts INTEGER NOT NULL DEFAULT 0,
		solved INTEGER NOT NULL DEFAULT 0,
		solved_at INTEGER,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, puzzle_id)
	);

	CREATE TABLE IF NOT EXISTS interactions (
		interaction_id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		session_id TEXT,
		world_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		command TEXT NOT NULL,
		response TEXT,
		created_at INTEGER NOT NULL,
		response_time_ms INTEGER,
		metrics_json TEXT NOT NULL,
		puzzle_context_json TEXT NOT NULL,
		responded INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, created_at);

	CREATE TABLE IF NOT EXISTS session_summaries (
		summary_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		device_id TEXT NOT NULL,
		world_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		end_reason TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		summary_json TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const sessionColumns = `session_id, device_id, world_id, variant, history_json,
	is_complete, start_time, last_active_time`

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		session     domain.Session
		variant     string
		historyJSON string
		startTime   int64
		lastActive  int64
	)
	if err := row.Scan(
		&session.ID, &session.DeviceID, &session.WorldID, &variant, &historyJSON,
		&session.IsComplete, &startTime, &lastActive,
	); err != nil {
		return nil, err
	}
	session.Variant = domain.Variant(variant)
	session.StartTime = time.UnixMilli(startTime)
	session.LastActiveTime = time.UnixMilli(lastActive)
	if err := json.Unmarshal([]byte(historyJSON), &session.History); err != nil {
		return nil, fmt.Errorf("decode history of session %s: %w", session.ID, err)
	}
	return &session, nil
}

func (s *SQLiteStore) querySession(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	states, err := s.GetPuzzleStates(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.PuzzleStates = states
	return session, nil
}

// GetActiveSession returns the incomplete session for key.
func (s *SQLiteStore) GetActiveSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE device_id = ? AND world_id = ? AND variant = ? AND is_complete = 0`
	return s.querySession(ctx, query, key.DeviceID, key.WorldID, string(key.Variant))
}

// GetLatestSession returns the most recently started session for key.
func (s *SQLiteStore) GetLatestSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE device_id = ? AND world_id = ? AND variant = ?
		ORDER BY start_time DESC, rowid DESC LIMIT 1`
	return s.querySession(ctx, query, key.DeviceID, key.WorldID, string(key.Variant))
}

// GetSession returns a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = ?`
	return s.querySession(ctx, query, sessionID)
}

// CreateSession inserts a new active session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	history := session.History
	if history == nil {
		history = []domain.Turn{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	query := `
		INSERT INTO sessions (session_id, device_id, world_id, variant, history_json,
			is_complete, start_time, last_active_time)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`

	err = shared.RetryOnConflict(ctx, s.retry, "create session", func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			session.ID, session.DeviceID, session.WorldID, string(session.Variant), string(historyJSON),
			session.StartTime.UnixMilli(), session.LastActiveTime.UnixMilli(),
		)
		return execErr
	})
	if shared.IsUniqueViolation(err) {
		return ErrSessionExists
	}
	return err
}

// UpdateSessionHistory replaces the conversation history of a session.
func (s *SQLiteStore) UpdateSessionHistory(ctx context.Context, sessionID string, history []domain.Turn, lastActive time.Time) error {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	query := `UPDATE sessions SET history_json = ?, last_active_time = ? WHERE session_id = ?`
	var rows int64
	err = shared.RetryOnConflict(ctx, s.retry, "update session history", func() error {
		result, execErr := s.db.ExecContext(ctx, query, string(historyJSON), lastActive.UnixMilli(), sessionID)
		if execErr != nil {
			return execErr
		}
		rows, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		slog.Warn("UpdateSessionHistory affected 0 rows", "session_id", sessionID)
		return ErrNotFound
	}
	return nil
}

// MarkSessionComplete flags a session as complete.
func (s *SQLiteStore) MarkSessionComplete(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sessions SET is_complete = 1, completed_at = ? WHERE session_id = ? AND is_complete = 0`
	return shared.RetryOnConflict(ctx, s.retry, "mark session complete", func() error {
		_, err := s.db.ExecContext(ctx, query, at.UnixMilli(), sessionID)
		return err
	})
}

// ListIdleSessions returns active sessions idle for longer than idle. The
// returned sessions carry no puzzle states.
func (s *SQLiteStore) ListIdleSessions(ctx context.Context, idle time.Duration) ([]*domain.Session, error) {
	threshold := time.Now().Add(-idle).UnixMilli()
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE is_complete = 0 AND last_active_time < ?
		ORDER BY last_active_time`

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query idle sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close idle sessions rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan idle session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idle sessions: %w", err)
	}
	return sessions, nil
}

// GetPuzzleStates returns the puzzle states of a session.
func (s *SQLiteStore) GetPuzzleStates(ctx context.Context, sessionID string) (map[string]domain.PuzzleState, error) {
	query := `
		SELECT puzzle_id, discovered, first_discovered_at, attempts, solved, solved_at
		FROM puzzle_states WHERE session_id = ?`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query puzzle states: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close puzzle state rows", "error", closeErr)
		}
	}()

	states := make(map[string]domain.PuzzleState)
	for rows.Next() {
		var (
			st         domain.PuzzleState
			discovered sql.NullInt64
			solvedAt   sql.NullInt64
		)
		if err := rows.Scan(&st.PuzzleID, &st.Discovered, &discovered, &st.Attempts, &st.Solved, &solvedAt); err != nil {
			return nil, fmt.Errorf("scan puzzle state: %w", err)
		}
		if discovered.Valid {
			ts := time.UnixMilli(discovered.Int64)
			st.FirstDiscoveredAt = &ts
		}
		if solvedAt.Valid {
			ts := time.UnixMilli(solvedAt.Int64)
			st.SolvedAt = &ts
		}
		states[st.PuzzleID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate puzzle states: %w", err)
	}
	return states, nil
}

// UpsertPuzzleState writes a puzzle state. The conflict clause merges with
// the stored row so that a stale writer can never lower attempts, clear a
// solve, or move a timestamp that is already set.
func (s *SQLiteStore) UpsertPuzzleState(ctx context.Context, sessionID string, state domain.PuzzleState) error {
	query := `
		INSERT INTO puzzle_states (
			session_id, puzzle_id, discovered, first_discovered_at,
			attempts, solved, solved_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, puzzle_id) DO UPDATE SET
			discovered = MAX(puzzle_states.discovered, excluded.discovered),
			first_discovered_at = COALESCE(puzzle_states.first_discovered_at, excluded.first_discovered_at),
			attempts = MAX(puzzle_states.attempts, excluded.attempts),
			solved = MAX(puzzle_states.solved, excluded.solved),
			solved_at = COALESCE(puzzle_states.solved_at, excluded.solved_at),
			updated_at = excluded.updated_at`

	var firstDiscovered, solvedAt any
	if state.FirstDiscoveredAt != nil {
		firstDiscovered = state.FirstDiscoveredAt.UnixMilli()
	}
	if state.SolvedAt != nil {
		solvedAt = state.SolvedAt.UnixMilli()
	}

	return shared.RetryOnConflict(ctx, s.retry, "upsert puzzle state", func() error {
		_, err := s.db.ExecContext(ctx, query,
			sessionID, state.PuzzleID, state.Discovered, firstDiscovered,
			state.Attempts, state.Solved, solvedAt, time.Now().UnixMilli(),
		)
		return err
	})
}

// InsertInteraction appends an interaction pre-image.
func (s *SQLiteStore) InsertInteraction(ctx context.Context, it *domain.Interaction) error {
	metricsJSON, err := json.Marshal(it.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	contextJSON, err := json.Marshal(it.PuzzleContext)
	if err != nil {
		return fmt.Errorf("encode puzzle context: %w", err)
	}

	var sessionID any
	if it.SessionID != "" {
		sessionID = it.SessionID
	}

	query := `
		INSERT INTO interactions (
			interaction_id, device_id, session_id, world_id, variant, command,
			created_at, metrics_json, puzzle_context_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, s.retry, "insert interaction", func() error {
		_, err := s.db.ExecContext(ctx, query,
			it.ID, it.DeviceID, sessionID, it.WorldID, string(it.Variant), it.Command,
			it.Timestamp.UnixMilli(), string(metricsJSON), string(contextJSON),
		)
		return err
	})
}

// CompleteInteraction records the response fields of an interaction once.
func (s *SQLiteStore) CompleteInteraction(ctx context.Context, interactionID string, response string, responseTimeMs int64, pctx domain.PuzzleContext) error {
	contextJSON, err := json.Marshal(pctx)
	if err != nil {
		return fmt.Errorf("encode puzzle context: %w", err)
	}

	query := `
		UPDATE interactions
		SET response = ?, response_time_ms = ?, puzzle_context_json = ?, responded = 1
		WHERE interaction_id = ? AND responded = 0`

	var rows int64
	err = shared.RetryOnConflict(ctx, s.retry, "complete interaction", func() error {
		result, execErr := s.db.ExecContext(ctx, query, response, responseTimeMs, string(contextJSON), interactionID)
		if execErr != nil {
			return execErr
		}
		rows, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListInteractions returns a session's interactions in timestamp order.
func (s *SQLiteStore) ListInteractions(ctx context.Context, sessionID string) ([]*domain.Interaction, error) {
	query := `
		SELECT interaction_id, device_id, session_id, world_id, variant, command,
		       response, created_at, response_time_ms, metrics_json, puzzle_context_json, responded
		FROM interactions WHERE session_id = ?
		ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close interaction rows", "error", closeErr)
		}
	}()

	var out []*domain.Interaction
	for rows.Next() {
		var (
			it           domain.Interaction
			session      sql.NullString
			variant      string
			response     sql.NullString
			createdAt    int64
			responseTime sql.NullInt64
			metricsJSON  string
			contextJSON  string
		)
		if err := rows.Scan(
			&it.ID, &it.DeviceID, &session, &it.WorldID, &variant, &it.Command,
			&response, &createdAt, &responseTime, &metricsJSON, &contextJSON, &it.Responded,
		); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		it.SessionID = session.String
		it.Variant = domain.Variant(variant)
		it.Response = response.String
		it.Timestamp = time.UnixMilli(createdAt)
		it.ResponseTimeMs = responseTime.Int64
		if err := json.Unmarshal([]byte(metricsJSON), &it.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics of interaction %s: %w", it.ID, err)
		}
		if err := json.Unmarshal([]byte(contextJSON), &it.PuzzleContext); err != nil {
			return nil, fmt.Errorf("decode puzzle context of interaction %s: %w", it.ID, err)
		}
		out = append(out, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}

// InsertSummary stores a session summary once.
func (s *SQLiteStore) InsertSummary(ctx context.Context, summary *domain.SessionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	query := `
		INSERT INTO session_summaries (
			summary_id, session_id, device_id, world_id, variant, end_reason, created_at, summary_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	err = shared.RetryOnConflict(ctx, s.retry, "insert summary", func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			summary.ID, summary.SessionID, summary.DeviceID, summary.WorldID, string(summary.Variant),
			summary.EndReason, summary.CreatedAt.UnixMilli(), string(data),
		)
		return execErr
	})
	if shared.IsUniqueViolation(err) {
		return ErrSummaryExists
	}
	return err
}

// GetSummary returns the summary for a session.
func (s *SQLiteStore) GetSummary(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT summary_json FROM session_summaries WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan summary: %w", err)
	}

	var summary domain.SessionSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &summary, nil
}

// ListSummaries returns all summaries, oldest first.
func (s *SQLiteStore) ListSummaries(ctx context.Context) ([]*domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT summary_json FROM session_summaries ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close summary rows", "error", closeErr)
		}
	}()

	var out []*domain.SessionSummary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		var summary domain.SessionSummary
		if err := json.Unmarshal([]byte(data), &summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out = append(out, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

var _ Repository = (*SQLiteStore)(nil)
