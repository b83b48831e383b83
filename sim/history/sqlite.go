// Package history persists training runs and the tree produced by every
// improvement step in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Run describes one training invocation.
type Run struct {
	ID        string
	Seed      int64
	Configs   string // human-readable scenario battery
	StartedAt time.Time
}

// Iteration is the result of one improvement step.
type Iteration struct {
	RunID    string
	Index    int
	Score    float64
	Leaves   int
	Reverted bool
	Tree     []byte // serialized whisker tree
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, seed, configs, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seed = excluded.seed,
			configs = excluded.configs,
			started_at = excluded.started_at
	`, run.ID, run.Seed, run.Configs, run.StartedAt.UTC().UnixNano())
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	run := Run{ID: id}
	var startedAt int64
	err = db.QueryRowContext(ctx, `SELECT seed, configs, started_at FROM runs WHERE id = ?`, id).
		Scan(&run.Seed, &run.Configs, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	run.StartedAt = time.Unix(0, startedAt).UTC()
	return run, true, nil
}

func (s *SQLiteStore) SaveIteration(ctx context.Context, it Iteration) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO iterations (run_id, idx, score, leaves, reverted, tree)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET
			score = excluded.score,
			leaves = excluded.leaves,
			reverted = excluded.reverted,
			tree = excluded.tree
	`, it.RunID, it.Index, it.Score, it.Leaves, it.Reverted, it.Tree)
	if err != nil {
		return fmt.Errorf("save iteration %d of run %s: %w", it.Index, it.RunID, err)
	}
	return nil
}

// Iterations returns every stored iteration of a run in index order.
func (s *SQLiteStore) Iterations(ctx context.Context, runID string) ([]Iteration, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT idx, score, leaves, reverted, tree FROM iterations
		WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		it := Iteration{RunID: runID}
		if err := rows.Scan(&it.Index, &it.Score, &it.Leaves, &it.Reverted, &it.Tree); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// LatestTree returns the tree of the highest-indexed iteration of a run.
func (s *SQLiteStore) LatestTree(ctx context.Context, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var tree []byte
	err = db.QueryRowContext(ctx, `
		SELECT tree FROM iterations WHERE run_id = ? ORDER BY idx DESC LIMIT 1
	`, runID).Scan(&tree)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return tree, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			configs TEXT NOT NULL,
			started_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS iterations (
			run_id TEXT NOT NULL REFERENCES runs(id),
			idx INTEGER NOT NULL,
			score REAL NOT NULL,
			leaves INTEGER NOT NULL,
			reverted BOOLEAN NOT NULL,
			tree BLOB NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
	`)
	return err
}
