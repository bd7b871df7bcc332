package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles job persistence
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new job repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new job
func (r *Repository) Create(ctx context.Context, job *Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO analysis_jobs (id, project_id, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, job.ID, job.ProjectID, job.Status, job.Payload, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	job := &Job{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, project_id, status, payload, error, started_at, completed_at, created_at
		FROM analysis_jobs WHERE id = $1
	`, id).Scan(&job.ID, &job.ProjectID, &job.Status, &job.Payload, &job.Error,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// Claim atomically moves a pending job to running. Returns nil when another
// worker already claimed it.
func (r *Repository) Claim(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job := &Job{}
	err := r.pool.QueryRow(ctx, `
		UPDATE analysis_jobs
		SET status = $1, started_at = NOW()
		WHERE id = $2 AND status = 'pending'
		RETURNING id, project_id, status, payload, error, started_at, completed_at, created_at
	`, StatusRunning, jobID).Scan(&job.ID, &job.ProjectID, &job.Status, &job.Payload, &job.Error,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil // already claimed or not pending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return job, nil
}

// Complete marks a job as completed
func (r *Repository) Complete(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $1, completed_at = NOW()
		WHERE id = $2
	`, StatusCompleted, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Fail marks a job as failed with an error message
func (r *Repository) Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $1, error = $2, completed_at = NOW()
		WHERE id = $3
	`, StatusFailed, errMsg, jobID)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return nil
}

// ListPending returns pending jobs, oldest first. The DB is the source of
// truth for job state; NATS only wakes workers up.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, status, payload, error, started_at, completed_at, created_at
		FROM analysis_jobs
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job := &Job{}
		if err := rows.Scan(&job.ID, &job.ProjectID, &job.Status, &job.Payload, &job.Error,
			&job.StartedAt, &job.CompletedAt, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, job)
	}

	return out, rows.Err()
}

// ListByProject returns jobs for a project, newest first
func (r *Repository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, status, payload, error, started_at, completed_at, created_at
		FROM analysis_jobs
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job := &Job{}
		if err := rows.Scan(&job.ID, &job.ProjectID, &job.Status, &job.Payload, &job.Error,
			&job.StartedAt, &job.CompletedAt, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, job)
	}

	return out, rows.Err()
}

// ResetStale requeues jobs stuck in running for longer than maxAge. Covers
// workers that died mid-run.
func (r *Repository) ResetStale(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = 'pending', started_at = NULL
		WHERE status = 'running' AND started_at < $1
	`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
