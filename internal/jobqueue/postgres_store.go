package jobqueue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	t "miniforge/internal/types"
)

// PostgresStore is the durable Store backend. Claim atomicity rides on a
// conditional UPDATE (by id) or SELECT ... FOR UPDATE SKIP LOCKED (FIFO);
// either way exactly one claimer wins the pending->processing transition.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS generation_jobs (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    project_id   TEXT,
    prompt       TEXT NOT NULL,
    context      TEXT,
    status       TEXT NOT NULL,
    result       TEXT,
    error        TEXT,
    created_at   TIMESTAMPTZ NOT NULL,
    started_at   TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    expires_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS generation_jobs_pending_idx
    ON generation_jobs (created_at) WHERE status = 'pending';`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Create(ctx context.Context, job t.GenerationJob) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO generation_jobs
    (id, user_id, project_id, prompt, context, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.UserID, nullable(job.ProjectID), job.Prompt, nullable(job.Context),
		string(job.Status), job.CreatedAt, job.ExpiresAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (t.GenerationJob, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return t.GenerationJob{}, err
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_id, COALESCE(project_id, ''), prompt, COALESCE(context, ''), status,
       COALESCE(result, ''), COALESCE(error, ''), created_at, started_at, completed_at, expires_at
FROM generation_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *PostgresStore) Claim(ctx context.Context, id string) (t.GenerationJob, ClaimResult, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return t.GenerationJob{}, ClaimNotFound, err
	}
	if id == "" {
		return s.claimOldest(ctx)
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE generation_jobs SET status = 'processing', started_at = NOW()
WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return t.GenerationJob{}, ClaimNotFound, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		job, err := s.Get(ctx, id)
		return job, Claimed, err
	}

	job, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return t.GenerationJob{}, ClaimNotFound, nil
	}
	if err != nil {
		return t.GenerationJob{}, ClaimNotFound, err
	}
	return job, ClaimAlreadyClaimed, nil
}

func (s *PostgresStore) claimOldest(ctx context.Context) (t.GenerationJob, ClaimResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return t.GenerationJob{}, ClaimNotFound, err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `
SELECT id FROM generation_jobs WHERE status = 'pending'
ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return t.GenerationJob{}, ClaimNotFound, nil
	}
	if err != nil {
		return t.GenerationJob{}, ClaimNotFound, err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE generation_jobs SET status = 'processing', started_at = NOW() WHERE id = $1`, id); err != nil {
		return t.GenerationJob{}, ClaimNotFound, err
	}
	if err := tx.Commit(); err != nil {
		return t.GenerationJob{}, ClaimNotFound, err
	}
	job, err := s.Get(ctx, id)
	return job, Claimed, err
}

func (s *PostgresStore) Complete(ctx context.Context, id, result string) error {
	return s.finish(ctx, id, "completed", result, "")
}

func (s *PostgresStore) Fail(ctx context.Context, id, errMsg string) error {
	return s.finish(ctx, id, "failed", "", errMsg)
}

func (s *PostgresStore) ReportFailure(ctx context.Context, id, errMsg string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE generation_jobs SET
    status = 'failed',
    error = CASE WHEN COALESCE(error, '') = '' THEN $2 ELSE error || '; ' || $2 END,
    completed_at = NOW()
WHERE id = $1`, id, errMsg)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]JobSummary, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, status, created_at FROM generation_jobs
WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobSummary
	for rows.Next() {
		var js JobSummary
		var status string
		if err := rows.Scan(&js.ID, &js.UserID, &status, &js.CreatedAt); err != nil {
			return nil, err
		}
		js.Status = t.JobStatus(status)
		out = append(out, js)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM generation_jobs WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) finish(ctx context.Context, id, status, result, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE generation_jobs SET status = $2, result = $3, error = $4, completed_at = NOW()
WHERE id = $1`, id, status, nullable(result), nullable(errMsg))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row *sql.Row) (t.GenerationJob, error) {
	var job t.GenerationJob
	var status string
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&job.ID, &job.UserID, &job.ProjectID, &job.Prompt, &job.Context, &status,
		&job.Result, &job.Error, &job.CreatedAt, &startedAt, &completedAt, &job.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t.GenerationJob{}, ErrNotFound
	}
	if err != nil {
		return t.GenerationJob{}, err
	}
	job.Status = t.JobStatus(status)
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
