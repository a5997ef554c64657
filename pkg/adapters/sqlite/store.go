// Package sqlite implements the poll, tally and session ports on a single
// SQLite database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/branchpoll/pkg/domain"
	_ "modernc.org/sqlite"
)

// Store implements ports.PollStore, ports.TallyStore and ports.SessionStore.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS polls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			owner_id INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			graph TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_polls_owner ON polls(owner_id, id);`,
		`CREATE TABLE IF NOT EXISTS tallies (
			poll_id INTEGER NOT NULL,
			question INTEGER NOT NULL,
			answer TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(poll_id, question, answer)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			poll_id INTEGER NOT NULL,
			respondent_id TEXT NOT NULL,
			state TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY(poll_id, respondent_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts the poll; AUTOINCREMENT supplies ids from 1 without reuse.
func (s *Store) Create(ctx context.Context, poll *domain.Poll) (int64, error) {
	graph, err := json.Marshal(poll.PollGraph)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal graph: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO polls(name, owner_id, created_at, graph) VALUES(?, ?, ?, ?)`,
		poll.Name, poll.OwnerID, poll.CreatedAt.UTC().Format(time.RFC3339Nano), string(graph),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert poll: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	poll.ID = id
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (*domain.Poll, error) {
	var (
		p         domain.Poll
		createdAt string
		graph     string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &createdAt, &graph); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("poll %d: bad created_at: %w", p.ID, err)
	}
	p.CreatedAt = t
	if err := json.Unmarshal([]byte(graph), &p.PollGraph); err != nil {
		return nil, fmt.Errorf("poll %d: bad graph: %w", p.ID, err)
	}
	if err := p.Graph().Validate(); err != nil {
		return nil, fmt.Errorf("poll %d: %w", p.ID, err)
	}
	return &p, nil
}

// Get loads one poll.
func (s *Store) Get(ctx context.Context, id int64) (*domain.Poll, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, owner_id, created_at, graph FROM polls WHERE id = ?`, id)
	p, err := scanPoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	return p, err
}

// Delete removes the poll row.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM polls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrPollNotFound
	}
	return nil
}

// ListByOwner returns the owner's polls in ascending id order.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Poll, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, owner_id, created_at, graph FROM polls WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	polls := []*domain.Poll{}
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		polls = append(polls, p)
	}
	return polls, rows.Err()
}

// Increment adds one vote with a single UPSERT.
func (s *Store) Increment(ctx context.Context, pollID int64, question int, answer string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tallies(poll_id, question, answer, count) VALUES(?, ?, ?, 1)
		ON CONFLICT(poll_id, question, answer) DO UPDATE SET count = count + 1
		RETURNING count`,
		pollID, question, answer,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to increment tally: %w", err)
	}
	return n, nil
}

// Counts returns every counter of a poll.
func (s *Store) Counts(ctx context.Context, pollID int64) (domain.Counts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question, answer, count FROM tallies WHERE poll_id = ?`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to read tallies: %w", err)
	}
	defer rows.Close()

	counts := domain.Counts{}
	for rows.Next() {
		var (
			q      int
			answer string
			n      int64
		)
		if err := rows.Scan(&q, &answer, &n); err != nil {
			return nil, err
		}
		if counts[q] == nil {
			counts[q] = make(map[string]int64)
		}
		counts[q][answer] = n
	}
	return counts, rows.Err()
}

// DeletePoll removes the poll's counters and sessions.
func (s *Store) DeletePoll(ctx context.Context, pollID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tallies WHERE poll_id = ?`, pollID); err != nil {
		return fmt.Errorf("failed to delete tallies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE poll_id = ?`, pollID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return tx.Commit()
}

// Sessions exposes the session half of the store. TallyStore and
// SessionStore both name their bulk removal DeletePoll.
func (s *Store) Sessions() *SessionStore {
	return &SessionStore{db: s.db}
}

// SessionStore implements ports.SessionStore on the store's database.
type SessionStore struct {
	db *sql.DB
}

// Save upserts the session row.
func (s *SessionStore) Save(ctx context.Context, state *domain.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions(poll_id, respondent_id, state, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(poll_id, respondent_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		state.PollID, state.RespondentID, string(data), state.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads one session row.
func (s *SessionStore) Load(ctx context.Context, key domain.SessionKey) (*domain.SessionState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE poll_id = ? AND respondent_id = ?`, key.PollID, key.RespondentID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &state, nil
}

// Delete removes one session row.
func (s *SessionStore) Delete(ctx context.Context, key domain.SessionKey) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE poll_id = ? AND respondent_id = ?`, key.PollID, key.RespondentID)
	return err
}

// DeletePoll removes every session row of a poll.
func (s *SessionStore) DeletePoll(ctx context.Context, pollID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE poll_id = ?`, pollID)
	return err
}
