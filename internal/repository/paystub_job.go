// Package repository persists paystub job state. The API and the worker
// share one store keyed by the job identifier, so duplicate submissions of
// the same source handle converge on a single record.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no job exists for the requested identifier.
var ErrNotFound = errors.New("job not found")

// JobStatus enumerates the lifecycle of a submitted paystub.
type JobStatus string

const (
	StatusUploaded            JobStatus = "uploaded"
	StatusProcessing          JobStatus = "processing"
	StatusCompleted           JobStatus = "completed"
	StatusCompletedWithErrors JobStatus = "completed_with_errors"
	StatusFailed              JobStatus = "failed"
)

// PaystubJob tracks one document's end-to-end processing attempt. The source
// handle doubles as the object key of the uploaded paystub.
type PaystubJob struct {
	ID           string    `json:"id"`
	SourceHandle string    `json:"source_handle"`
	FileName     string    `json:"file_name"`
	Recipient    string    `json:"recipient,omitempty"`
	ReportKey    *string   `json:"report_key,omitempty"`
	Status       JobStatus `json:"status"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is the status-store surface the API and worker depend on.
type Store interface {
	Create(ctx context.Context, job *PaystubJob) error
	Get(ctx context.Context, id string) (*PaystubJob, error)
	MarkProcessing(ctx context.Context, id, recipient string) error
	MarkFailed(ctx context.Context, id, message string) error
	MarkCompleted(ctx context.Context, id, reportKey string) error
	MarkCompletedWithErrors(ctx context.Context, id, reportKey, message string) error
}

// PaystubJobRepository wraps all SQL used throughout the API and worker.
type PaystubJobRepository struct {
	pool *pgxpool.Pool
}

// NewPaystubJobRepository constructs a repository.
func NewPaystubJobRepository(pool *pgxpool.Pool) *PaystubJobRepository {
	return &PaystubJobRepository{pool: pool}
}

// Create upserts the job record at upload time. A re-upload of the same
// source handle resets the existing record rather than erroring.
func (r *PaystubJobRepository) Create(ctx context.Context, job *PaystubJob) error {
	now := time.Now().UTC()
	job.Status = StatusUploaded
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO paystub_jobs (id, source_handle, file_name, recipient, report_key, status, message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NULL,$5,'',$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			source_handle = EXCLUDED.source_handle,
			file_name = EXCLUDED.file_name,
			recipient = EXCLUDED.recipient,
			report_key = NULL,
			status = EXCLUDED.status,
			message = '',
			updated_at = EXCLUDED.updated_at
	`, job.ID, job.SourceHandle, job.FileName, job.Recipient, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get returns a job by id.
func (r *PaystubJobRepository) Get(ctx context.Context, id string) (*PaystubJob, error) {
	var (
		job       PaystubJob
		reportKey sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, source_handle, file_name, COALESCE(recipient,''), report_key, status, COALESCE(message,''), created_at, updated_at
		FROM paystub_jobs WHERE id=$1
	`, id)
	if err := row.Scan(&job.ID, &job.SourceHandle, &job.FileName, &job.Recipient, &reportKey, &job.Status, &job.Message, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	if reportKey.Valid {
		key := reportKey.String
		job.ReportKey = &key
	}
	return &job, nil
}

// MarkProcessing records the submission transition and the delivery address.
func (r *PaystubJobRepository) MarkProcessing(ctx context.Context, id, recipient string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE paystub_jobs
		SET status=$1, recipient=$2, message='', updated_at=$3
		WHERE id=$4
	`, StatusProcessing, recipient, now, id)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// MarkFailed records a terminal pipeline failure with its message.
func (r *PaystubJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	return r.finish(ctx, id, StatusFailed, nil, message)
}

// MarkCompleted records a fully successful run and the report location.
func (r *PaystubJobRepository) MarkCompleted(ctx context.Context, id, reportKey string) error {
	return r.finish(ctx, id, StatusCompleted, &reportKey, "")
}

// MarkCompletedWithErrors records a run whose report exists but whose
// delivery did not happen.
func (r *PaystubJobRepository) MarkCompletedWithErrors(ctx context.Context, id, reportKey, message string) error {
	return r.finish(ctx, id, StatusCompletedWithErrors, &reportKey, message)
}

func (r *PaystubJobRepository) finish(ctx context.Context, id string, status JobStatus, reportKey *string, message string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE paystub_jobs
		SET status=$1,
			report_key = COALESCE($2, report_key),
			message=$3,
			updated_at=$4
		WHERE id=$5
	`, status, reportKey, message, now, id)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}
