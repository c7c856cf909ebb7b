package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arashthr/lodekeep/internal/errors"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Job is one unit of asynchronous work. The row carries everything needed
// to report status to clients: typed parameters, a monotonic progress
// counter and a result document written once on completion.
type Job struct {
	Id              types.JobId
	OwnerId         types.OwnerId
	JobType         string
	Status          types.JobStatus
	Title           string
	ProgressCurrent int
	ProgressTotal   int
	CurrentItem     *string
	Parameters      json.RawMessage
	Result          json.RawMessage
	ErrorMessage    *string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ExpiresAt       time.Time
}

const jobColumns = `id, owner_id, job_type, status, title, progress_current, progress_total,
		current_item, parameters, result, error_message, created_at, started_at, completed_at, expires_at`

// jobRetention is how long jobs stay queryable before cleanup, applied
// from creation and refreshed when the job finishes.
const jobRetention = "24 hours"

type JobModel struct {
	Pool *pgxpool.Pool
}

func (model *JobModel) Create(ctx context.Context, owner types.OwnerId, jobType, title string, parameters json.RawMessage) (*Job, error) {
	if len(parameters) == 0 {
		parameters = json.RawMessage(`{}`)
	}
	rows, err := model.Pool.Query(ctx, `
		INSERT INTO jobs (id, owner_id, job_type, status, title, parameters, expires_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, NOW() + $6::interval)
		RETURNING `+jobColumns,
		uuid.NewString(), owner, jobType, title, parameters, jobRetention)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	job, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Job])
	if err != nil {
		return nil, fmt.Errorf("collect created job: %w", err)
	}
	return &job, nil
}

func (model *JobModel) GetByID(ctx context.Context, owner types.OwnerId, id types.JobId) (*Job, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND owner_id = $2`,
		id, owner)
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	job, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Job])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("collect job: %w", err)
	}
	return &job, nil
}

// ListActive returns the owner's pending and running jobs, oldest first.
func (model *JobModel) ListActive(ctx context.Context, owner types.OwnerId) ([]Job, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE owner_id = $1 AND status IN ('pending', 'running')
		ORDER BY created_at`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("query active jobs: %w", err)
	}
	jobs, err := pgx.CollectRows(rows, pgx.RowToStructByName[Job])
	if err != nil {
		return nil, fmt.Errorf("collect active jobs: %w", err)
	}
	return jobs, nil
}

// ClaimNext moves the oldest pending job to running and returns it. The
// conditional update means each job is claimed by exactly one worker even
// with several pollers racing. Returns nil when the queue is empty.
func (model *JobModel) ClaimNext(ctx context.Context) (*Job, error) {
	rows, err := model.Pool.Query(ctx, `
		UPDATE jobs
		SET status = 'running', started_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		) AND status = 'pending'
		RETURNING `+jobColumns)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	job, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Job])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("collect claimed job: %w", err)
	}
	return &job, nil
}

// UpdateProgress advances the progress counter. GREATEST keeps the counter
// monotonic if updates ever arrive out of order.
func (model *JobModel) UpdateProgress(ctx context.Context, id types.JobId, current, total int, currentItem string) error {
	_, err := model.Pool.Exec(ctx, `
		UPDATE jobs
		SET progress_current = GREATEST(progress_current, $2),
			progress_total = $3,
			current_item = $4
		WHERE id = $1 AND status = 'running'`,
		id, current, total, currentItem)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (model *JobModel) MarkCompleted(ctx context.Context, id types.JobId, result json.RawMessage) error {
	_, err := model.Pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'completed', result = $2, current_item = NULL,
			completed_at = NOW(), expires_at = NOW() + $3::interval
		WHERE id = $1 AND status = 'running'`,
		id, result, jobRetention)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

func (model *JobModel) MarkFailed(ctx context.Context, id types.JobId, message string) error {
	_, err := model.Pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'failed', error_message = $2, current_item = NULL,
			completed_at = NOW(), expires_at = NOW() + $3::interval
		WHERE id = $1 AND status IN ('pending', 'running')`,
		id, message, jobRetention)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// DeleteExpired removes terminal jobs past their retention window.
// Running jobs are never deleted, even with a stale expires_at.
func (model *JobModel) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := model.Pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed') AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
