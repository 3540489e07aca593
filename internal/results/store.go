// Package results keeps a history of finished sessions in SQLite.
package results

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Outcomes recorded for a session.
const (
	OutcomeEnded    = "ended"
	OutcomeAborted  = "aborted"
	OutcomeCanceled = "canceled"
)

// Record is one finished session.
type Record struct {
	ID        string
	Initiator string
	Outcome   string
	Steps     uint64
	Fallbacks int
	StartedAt time.Time
	EndedAt   time.Time
	Error     string
}

// Duration is how long the session ran.
func (r Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Summary aggregates all recorded sessions.
type Summary struct {
	Total     int    `json:"total"`
	Ended     int    `json:"ended"`
	Aborted   int    `json:"aborted"`
	Canceled  int    `json:"canceled"`
	Steps     uint64 `json:"steps"`
	Fallbacks int    `json:"fallbacks"`
}

// Store persists session records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path, creating it and its schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// applyMigrations runs every embedded migration in name order. Migrations
// are written to be idempotent.
func applyMigrations(sqlDB *sql.DB) error {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrations, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := sqlDB.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save inserts or replaces a record.
func (s *Store) Save(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	switch r.Outcome {
	case OutcomeEnded, OutcomeAborted, OutcomeCanceled:
	default:
		return fmt.Errorf("unknown outcome %q", r.Outcome)
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (
		   id, initiator, outcome, steps, fallbacks, started_at, ended_at, error
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Initiator,
		r.Outcome,
		int64(r.Steps),
		r.Fallbacks,
		toMillis(r.StartedAt),
		toMillis(r.EndedAt),
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit records, most recently ended first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, initiator, outcome, steps, fallbacks, started_at, ended_at, error
		   FROM sessions
		  ORDER BY ended_at DESC, id
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                 Record
			steps             int64
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Initiator, &r.Outcome, &steps, &r.Fallbacks, &started, &finished, &r.Error); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.Steps = uint64(steps)
		r.StartedAt = fromMillis(started)
		r.EndedAt = fromMillis(finished)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// Summarize aggregates every record.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT outcome, COUNT(*), COALESCE(SUM(steps), 0), COALESCE(SUM(fallbacks), 0)
		   FROM sessions
		  GROUP BY outcome`)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize sessions: %w", err)
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var (
			outcome          string
			count, fallbacks int
			steps            int64
		)
		if err := rows.Scan(&outcome, &count, &steps, &fallbacks); err != nil {
			return Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		sum.Total += count
		sum.Steps += uint64(steps)
		sum.Fallbacks += fallbacks
		switch outcome {
		case OutcomeEnded:
			sum.Ended = count
		case OutcomeAborted:
			sum.Aborted = count
		case OutcomeCanceled:
			sum.Canceled = count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("summarize sessions: %w", err)
	}
	return sum, nil
}
