package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRunStore implements RunStore on a SQLite database.
type SQLiteRunStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteRunStore opens (creating if needed) the database at path. The
// special path ":memory:" opens a private in-memory database.
func NewSQLiteRunStore(ctx context.Context, path string) (*SQLiteRunStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if path == ":memory:" {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRunStore{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteRunStore) Path() string { return s.path }

const timeLayout = time.RFC3339Nano

// CreateRun inserts a run and returns its ID.
func (s *SQLiteRunStore) CreateRun(ctx context.Context, run Run) (int64, error) {
	exp, err := json.Marshal(run.Experiment)
	if err != nil {
		return 0, fmt.Errorf("failed to encode experiment: %w", err)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, status, seed, time_step, steps, divider, experiment)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(timeLayout), run.Status, int64(run.Seed), run.TimeStep, run.Steps, run.Divider, string(exp))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// AddSamples inserts samples in one transaction.
func (s *SQLiteRunStore) AddSamples(ctx context.Context, runID int64, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, step, time, left1, right1, left2, right2,
			center_x1, center_x2, left_temperature, right_temperature, flow_rate1, flow_rate2, wall_collisions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		if _, err := stmt.ExecContext(ctx, runID, smp.Step, smp.Time,
			smp.Left1, smp.Right1, smp.Left2, smp.Right2,
			nullable(smp.CenterX1), nullable(smp.CenterX2),
			nullable(smp.LeftTemperature), nullable(smp.RightTemperature),
			nullable(smp.FlowRate1), nullable(smp.FlowRate2), smp.WallCollisions); err != nil {
			return fmt.Errorf("failed to insert sample %d of run %d: %w", smp.Step, runID, err)
		}
	}
	return tx.Commit()
}

// FinishRun records the final status, step count and error of a run.
func (s *SQLiteRunStore) FinishRun(ctx context.Context, runID int64, status string, steps int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, steps = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, steps, msg, time.Now().UTC().Format(timeLayout), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, status, error, seed, time_step, steps, divider, experiment`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
		seed     int64
		exp      string
	)
	if err := row.Scan(&r.ID, &started, &finished, &r.Status, &r.Error, &seed, &r.TimeStep, &r.Steps, &r.Divider, &exp); err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)

	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("run %d: bad started_at %q: %w", r.ID, started, err)
	}
	r.StartedAt = t
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("run %d: bad finished_at %q: %w", r.ID, finished.String, err)
		}
		r.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(exp), &r.Experiment); err != nil {
		return nil, fmt.Errorf("run %d: bad experiment: %w", r.ID, err)
	}
	return &r, nil
}

// GetRun returns the run with the given ID.
func (s *SQLiteRunStore) GetRun(ctx context.Context, runID int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Samples returns the samples of a run ordered by step.
func (s *SQLiteRunStore) Samples(ctx context.Context, runID int64) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, time, left1, right1, left2, right2, center_x1, center_x2,
			left_temperature, right_temperature, flow_rate1, flow_rate2, wall_collisions
		FROM samples WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			smp              Sample
			cx1, cx2, lt, rt sql.NullFloat64
			fr1, fr2         sql.NullFloat64
		)
		if err := rows.Scan(&smp.Step, &smp.Time, &smp.Left1, &smp.Right1, &smp.Left2, &smp.Right2,
			&cx1, &cx2, &lt, &rt, &fr1, &fr2, &smp.WallCollisions); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		smp.CenterX1, smp.CenterX2 = ptr(cx1), ptr(cx2)
		smp.LeftTemperature, smp.RightTemperature = ptr(lt), ptr(rt)
		smp.FlowRate1, smp.FlowRate2 = ptr(fr1), ptr(fr2)
		out = append(out, smp)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}
