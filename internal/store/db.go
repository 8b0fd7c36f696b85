// Package store persists verification jobs and their per-email results
// in PostgreSQL. The full result is kept as JSONB so it can be
// re-analyzed later without re-probing.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Job tracks one bulk verification batch.
type Job struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	TotalCount     int        `json:"total_count"`
	ProcessedCount int        `json:"processed_count"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ResultRow is one verified email within a job. Data carries the full
// VerificationResult; RawMessage keeps the JSONB object unescaped.
type ResultRow struct {
	Email        string          `json:"email"`
	Reachability string          `json:"reachability"`
	Data         json.RawMessage `json:"data"`
}

// Store wraps the connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres, verifies the connection and applies the
// schema migrations.
func Open(ctx context.Context, connString string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) migrate(ctx context.Context) error {
	queryJobs := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		total_count INT DEFAULT 0,
		processed_count INT DEFAULT 0,
		created_at TIMESTAMP DEFAULT NOW(),
		completed_at TIMESTAMP
	);`

	queryResults := `
	CREATE TABLE IF NOT EXISTS results (
		id SERIAL PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES jobs(id),
		email TEXT NOT NULL,
		reachability TEXT NOT NULL,
		data JSONB NOT NULL
	);`

	if _, err := s.pool.Exec(ctx, queryJobs); err != nil {
		return fmt.Errorf("migration failed (jobs): %w", err)
	}
	if _, err := s.pool.Exec(ctx, queryResults); err != nil {
		return fmt.Errorf("migration failed (results): %w", err)
	}
	return nil
}

// CreateJob records a new pending job.
func (s *Store) CreateJob(ctx context.Context, id string, total int) error {
	query := `INSERT INTO jobs (id, status, total_count, created_at) VALUES ($1, 'pending', $2, $3)`
	if _, err := s.pool.Exec(ctx, query, id, total, time.Now()); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Job fetches one job by id.
func (s *Store) Job(ctx context.Context, id string) (Job, error) {
	query := `
		SELECT id, status, total_count, processed_count, created_at, completed_at
		FROM jobs
		WHERE id = $1
	`
	var job Job
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Status, &job.TotalCount, &job.ProcessedCount,
		&job.CreatedAt, &job.CompletedAt,
	)
	if err != nil {
		return Job{}, fmt.Errorf("fetch job %s: %w", id, err)
	}
	return job, nil
}

// Results returns every verified email of a job in processing order.
func (s *Store) Results(ctx context.Context, jobID string) ([]ResultRow, error) {
	query := `SELECT email, reachability, data FROM results WHERE job_id = $1 ORDER BY id ASC`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch results for %s: %w", jobID, err)
	}
	defer rows.Close()

	results := []ResultRow{}
	for rows.Next() {
		var row ResultRow
		if err := rows.Scan(&row.Email, &row.Reachability, &row.Data); err != nil {
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// SaveResult inserts one result and bumps the job's progress in a single
// transaction. When the processed count reaches the total, the job flips
// to completed.
func (s *Store) SaveResult(ctx context.Context, jobID, email, reachability string, data []byte) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO results (job_id, email, reachability, data)
		VALUES ($1, $2, $3, $4)
	`, jobID, email, reachability, data)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET processed_count = processed_count + 1,
		    status = CASE
		        WHEN processed_count + 1 >= total_count THEN 'completed'
		        ELSE status
		    END,
		    completed_at = CASE
		        WHEN processed_count + 1 >= total_count THEN NOW()
		        ELSE completed_at
		    END
		WHERE id = $1
	`, jobID)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}

	return tx.Commit(ctx)
}
