// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runlog records generation runs in SQLite so that any document can
// be listed, inspected, and regenerated from its seed and configuration.
// Implements: docs/ARCHITECTURE § Run History.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/scigen/pkg/types"
)

const dbFile = "history.db"

var (
	// ErrNotFound is returned when no run matches an ID.
	ErrNotFound = errors.New("run not found")

	// ErrAmbiguous is returned when an ID prefix matches several runs.
	ErrAmbiguous = errors.New("run ID prefix is ambiguous")
)

// DefaultPath returns ~/.local/share/scigen/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "scigen", dbFile), nil
}

// Log is the run history database.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the history database at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	l := &Log{db: db, now: time.Now}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			product TEXT NOT NULL,
			config TEXT NOT NULL,
			status TEXT NOT NULL,
			artifact TEXT,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Start records a new run with status started. cfg must carry the resolved
// seed and year.
func (l *Log) Start(ctx context.Context, cfg types.GenerationConfig) (types.Run, error) {
	if cfg.Seed == nil {
		return types.Run{}, fmt.Errorf("recording run: seed is not resolved")
	}
	run := types.Run{
		ID:        uuid.NewString(),
		StartedAt: l.now().UTC().Truncate(time.Second),
		Seed:      *cfg.Seed,
		Config:    cfg,
		Status:    types.RunStarted,
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return types.Run{}, fmt.Errorf("marshaling config: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, seed, product, config, status) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(time.RFC3339), run.Seed, string(cfg.Product), string(data), string(run.Status),
	)
	if err != nil {
		return types.Run{}, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// Finish marks a run complete, or failed when runErr is not nil.
func (l *Log) Finish(ctx context.Context, id, artifact string, runErr error) error {
	status, msg := types.RunComplete, ""
	if runErr != nil {
		status, msg = types.RunFailed, runErr.Error()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, artifact = ?, error = ? WHERE id = ?`,
		string(status), artifact, msg, id,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating run %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get returns the run whose ID equals id, or the single run whose ID
// starts with id.
func (l *Log) Get(ctx context.Context, id string) (types.Run, error) {
	const query = `SELECT id, started_at, seed, config, status, artifact, error FROM runs `

	rows, err := l.db.QueryContext(ctx, query+`WHERE id = ?`, id)
	if err != nil {
		return types.Run{}, fmt.Errorf("querying run %s: %w", id, err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return types.Run{}, err
	}
	if len(runs) == 1 {
		return runs[0], nil
	}

	rows, err = l.db.QueryContext(ctx, query+`WHERE id LIKE ? LIMIT 2`, id+"%")
	if err != nil {
		return types.Run{}, fmt.Errorf("querying run %s: %w", id, err)
	}
	runs, err = scanRuns(rows)
	if err != nil {
		return types.Run{}, err
	}
	switch len(runs) {
	case 0:
		return types.Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	case 1:
		return runs[0], nil
	default:
		return types.Run{}, fmt.Errorf("%s: %w", id, ErrAmbiguous)
	}
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (l *Log) List(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, seed, config, status, artifact, error FROM runs
		 ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]types.Run, error) {
	defer rows.Close()
	var runs []types.Run
	for rows.Next() {
		var (
			r                 types.Run
			started, cfg      string
			status            string
			artifact, errText sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &r.Seed, &cfg, &status, &artifact, &errText); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		t, err := time.Parse(time.RFC3339, started)
		if err != nil {
			return nil, fmt.Errorf("parsing start time of run %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
			return nil, fmt.Errorf("parsing config of run %s: %w", r.ID, err)
		}
		r.StartedAt = t
		r.Status = types.RunStatus(status)
		r.Artifact = artifact.String
		r.Error = errText.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}
