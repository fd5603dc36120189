package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - runs and features tables
const currentSchemaVersion = 1

// DefaultPath is the database file used when none is configured
const DefaultPath = ".suiterun/history.db"

// ErrNoRuns is returned when no run matches a query
var ErrNoRuns = errors.New("no recorded runs")

// Run is one recorded run
type Run struct {
	ID          string
	Environment string
	StartedAt   time.Time
	EndedAt     time.Time
	Passed      int
	Failed      int
	Skipped     int
	Errors      int
	Total       int
	Duration    time.Duration
	WallClock   time.Duration
	P95         time.Duration
	Threads     int
	Complete    bool
	ReportDir   string
}

// Success reports whether the run completed without failures
func (r *Run) Success() bool {
	return r.Complete && r.Failed == 0
}

// Feature is one recorded feature outcome
type Feature struct {
	Name       string
	Path       string
	Status     runner.Status
	Fatal      bool
	Duration   time.Duration
	Error      string
	SkipReason string
}

// Store provides durable storage for run history.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies
// pragmas and migrations. It is safe to call repeatedly on the same file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Record stores a finalized result and its feature outcomes in one transaction.
// Recording the same run twice fails.
func (s *Store) Record(ctx context.Context, r *runner.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, environment, started_at, ended_at, passed, failed, skipped, errors,
			total, duration_ms, wall_clock_ms, p95_ms, threads, complete, report_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Environment, r.StartedAt.UnixMilli(), r.EndedAt.UnixMilli(),
		r.Passed, r.Failed, r.Skipped, r.Errors, r.Total,
		r.Duration.Milliseconds(), r.WallClock.Milliseconds(), r.P95.Milliseconds(),
		r.ThreadCount, r.Complete, r.ReportDir,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO features (run_id, seq, name, path, status, fatal, duration_ms, error, skip_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare features: %w", err)
	}
	defer stmt.Close()

	for i, o := range r.Outcomes {
		if _, err = stmt.ExecContext(ctx, r.RunID, i, o.Feature, o.Path, string(o.Status),
			o.Fatal, o.Duration.Milliseconds(), o.Error(), o.SkipReason); err != nil {
			return fmt.Errorf("insert feature %s: %w", o.Key(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `id, environment, started_at, ended_at, passed, failed, skipped, errors,
	total, duration_ms, wall_clock_ms, p95_ms, threads, complete, report_dir`

// Last returns the most recent run for environment. An empty environment
// matches runs recorded without one.
func (s *Store) Last(ctx context.Context, environment string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE environment = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		environment)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	return run, err
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Features returns the recorded outcomes of a run in report order
func (s *Store) Features(ctx context.Context, runID string) ([]*Feature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, path, status, fatal, duration_ms, error, skip_reason
		FROM features WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	var out []*Feature
	for rows.Next() {
		var (
			f      Feature
			status string
			durMs  int64
		)
		if err := rows.Scan(&f.Name, &f.Path, &status, &f.Fatal, &durMs, &f.Error, &f.SkipReason); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		f.Status = runner.Status(status)
		f.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, &f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                    Run
		started, ended       int64
		durMs, wallMs, p95Ms int64
	)
	err := sc.Scan(&r.ID, &r.Environment, &started, &ended, &r.Passed, &r.Failed, &r.Skipped,
		&r.Errors, &r.Total, &durMs, &wallMs, &p95Ms, &r.Threads, &r.Complete, &r.ReportDir)
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.EndedAt = time.UnixMilli(ended)
	r.Duration = time.Duration(durMs) * time.Millisecond
	r.WallClock = time.Duration(wallMs) * time.Millisecond
	r.P95 = time.Duration(p95Ms) * time.Millisecond
	return &r, nil
}

// Hook returns a suite hook that records the result once the run is finalized
func (s *Store) Hook() runner.Hook {
	return runner.HookFuncs{
		OnAfterSuite: func(ctx context.Context, _ *runner.Suite, r *runner.Result) error {
			return s.Record(ctx, r)
		},
	}
}
