package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores summaries in a SQLite database, one row per scalar
// metric and one row per window holding the raw reward and action
// lists. Rows are keyed by run id and step, so a resumed run may be
// stored under the same id.
type SQLiteSink struct {
	path  string
	RunID string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteSink returns a SQLiteSink for the database at path. An empty
// runID is replaced by a random one.
func NewSQLiteSink(path, runID string) *SQLiteSink {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &SQLiteSink{path: path, RunID: runID}
}

// Init opens the database and creates its tables
func (s *SQLiteSink) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("init: sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return errors.Wrap(err, "init")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrap(err, "init")
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return errors.Wrap(err, "init")
	}

	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS scalars (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			metric TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, step, metric)
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			rewards TEXT NOT NULL,
			actions TEXT NOT NULL,
			PRIMARY KEY (run_id, step)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Emit implements the Sink interface
func (s *SQLiteSink) Emit(ctx context.Context, summary Summary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	rewards, err := json.Marshal(nonNil(summary.EpisodeRewards))
	if err != nil {
		return errors.Wrap(err, "emit: could not encode rewards")
	}
	actions := summary.Actions
	if actions == nil {
		actions = []int{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return errors.Wrap(err, "emit: could not encode actions")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "emit")
	}
	defer tx.Rollback()

	for _, m := range ScalarMetrics {
		value, err := summary.Scalar(m)
		if err != nil {
			return errors.Wrap(err, "emit")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scalars (run_id, step, metric, value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, step, metric) DO UPDATE SET
				value = excluded.value
		`, s.RunID, summary.Step, string(m), value)
		if err != nil {
			return errors.Wrapf(err, "emit: could not store %q", m)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO episodes (run_id, step, rewards, actions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET
			rewards = excluded.rewards,
			actions = excluded.actions
	`, s.RunID, summary.Step, string(rewards), string(actionsJSON))
	if err != nil {
		return errors.Wrap(err, "emit: could not store episodes")
	}

	return errors.Wrap(tx.Commit(), "emit")
}

// Scalar returns the stored value of a metric at a step. The boolean
// is false if no such value was stored.
func (s *SQLiteSink) Scalar(ctx context.Context, step int,
	m Metric) (float64, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, false, err
	}

	var value float64
	err = db.QueryRowContext(ctx, `
		SELECT value FROM scalars WHERE run_id = ? AND step = ? AND metric = ?
	`, s.RunID, step, string(m)).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return value, true, nil
}

// Episodes returns the stored episode rewards and actions at a step
func (s *SQLiteSink) Episodes(ctx context.Context, step int) ([]float64,
	[]int, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, nil, false, err
	}

	var rewardsJSON, actionsJSON string
	err = db.QueryRowContext(ctx, `
		SELECT rewards, actions FROM episodes WHERE run_id = ? AND step = ?
	`, s.RunID, step).Scan(&rewardsJSON, &actionsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	var rewards []float64
	var actions []int
	if err := json.Unmarshal([]byte(rewardsJSON), &rewards); err != nil {
		return nil, nil, false, errors.Wrapf(err, "decode rewards at step %d",
			step)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &actions); err != nil {
		return nil, nil, false, errors.Wrapf(err, "decode actions at step %d",
			step)
	}
	return rewards, actions, true, nil
}

// Steps returns the number of windows stored for the run
func (s *SQLiteSink) Steps(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM episodes WHERE run_id = ?
	`, s.RunID).Scan(&n)
	return n, err
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteSink) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite sink is not initialized")
	}
	return s.db, nil
}

func nonNil(values []float64) []float64 {
	if values == nil {
		return []float64{}
	}
	return values
}
