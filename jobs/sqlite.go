package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/use-agent/mapscout/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id            TEXT PRIMARY KEY,
    status        TEXT NOT NULL,
    query         TEXT NOT NULL,
    location      TEXT NOT NULL,
    lim           INTEGER NOT NULL,
    results_count INTEGER NOT NULL DEFAULT 0,
    businesses    TEXT,
    error         TEXT,
    started_at    INTEGER NOT NULL,
    completed_at  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// SQLiteStore implements Store on SQLite. Businesses are kept as a JSON
// column. Updates only match rows that are still pending.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn and creates the schema if needed.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobs: open sqlite: %w", err)
	}
	// A shared-cache in-memory database lives as long as one connection
	// does, and SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobs: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, job *models.Job) error {
	businesses, err := marshalBusinesses(job.Businesses)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, query, location, lim, results_count, businesses, error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		job.ID, string(job.Status), job.Query, job.Location, job.Limit, job.ResultsCount,
		businesses, nullString(job.Error), job.StartedAt.UnixNano(), nullTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("jobs: insert %s: %w", job.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, query, location, lim, results_count, businesses, error, started_at, completed_at
		 FROM jobs WHERE id = ?`, id,
	)

	var (
		job         models.Job
		status      string
		businesses  sql.NullString
		errMsg      sql.NullString
		startedAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(&job.ID, &status, &job.Query, &job.Location, &job.Limit, &job.ResultsCount,
		&businesses, &errMsg, &startedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobs: get %s: %w", id, err)
	}

	job.Status = models.JobStatus(status)
	job.Error = errMsg.String
	job.StartedAt = time.Unix(0, startedAt)
	if completedAt.Valid {
		t := time.Unix(0, completedAt.Int64)
		job.CompletedAt = &t
	}
	if businesses.Valid {
		if err := json.Unmarshal([]byte(businesses.String), &job.Businesses); err != nil {
			return nil, fmt.Errorf("jobs: decode businesses of %s: %w", id, err)
		}
	}
	return &job, nil
}

func (s *SQLiteStore) Update(ctx context.Context, job *models.Job) error {
	businesses, err := marshalBusinesses(job.Businesses)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, results_count = ?, businesses = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		string(job.Status), job.ResultsCount, businesses, nullString(job.Error), nullTime(job.CompletedAt),
		job.ID, string(models.JobPending),
	)
	if err != nil {
		return fmt.Errorf("jobs: update %s: %w", job.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: either the job is unknown or it is already terminal.
	cur, err := s.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s", ErrTerminal, job.ID, cur.Status)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("jobs: count: %w", err)
	}
	return n, nil
}

func marshalBusinesses(bs []models.Business) (sql.NullString, error) {
	if bs == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(bs)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("jobs: encode businesses: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
