package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
	"github.com/campuskit/provisioner/internal/infrastructure/db/models"
)

// BatchJobRepository is the Postgres-backed queue of provisioning runs.
// Claims take a lease so a crashed worker's job becomes claimable again once
// the lease expires.
type BatchJobRepository struct {
	db *gorm.DB
}

func NewBatchJobRepository(db *gorm.DB) *BatchJobRepository {
	return &BatchJobRepository{db: db}
}

func (r *BatchJobRepository) Enqueue(ctx context.Context, sourcePath string) (string, error) {
	job := models.BatchJob{
		SourcePath: sourcePath,
		Status:     domain.JobQueued,
	}

	if err := r.db.WithContext(ctx).Create(&job).Error; err != nil {
		return "", fmt.Errorf("create batch job: %w", err)
	}

	return job.ID, nil
}

// ClaimNext atomically claims the oldest runnable job, assigns it a run ID
// derived from the claim time, and returns nil when the queue is empty.
func (r *BatchJobRepository) ClaimNext(ctx context.Context, runID string, leaseDuration time.Duration) (*domain.BatchJob, error) {
	now := time.Now().UTC()
	leaseUntil := now.Add(leaseDuration)

	var claimed models.BatchJob
	err := r.db.WithContext(ctx).Raw(`
		UPDATE provisioning_batch_jobs
		SET status = ?,
		    run_id = ?,
		    attempts = attempts + 1,
		    started_at = COALESCE(started_at, ?),
		    heartbeat_at = ?,
		    lease_expires_at = ?,
		    updated_at = ?
		WHERE id = (
			SELECT id FROM provisioning_batch_jobs
			WHERE status = ?
			   OR (status = ? AND lease_expires_at < ?)
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING *`,
		domain.JobRunning, runID, now, now, leaseUntil, now,
		domain.JobQueued, domain.JobRunning, now,
	).Scan(&claimed).Error
	if err != nil {
		return nil, fmt.Errorf("claim batch job: %w", err)
	}
	if claimed.ID == "" {
		return nil, nil
	}

	return toDomainJob(claimed), nil
}

func (r *BatchJobRepository) Heartbeat(ctx context.Context, jobID string, leaseDuration time.Duration) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ? AND status = ?", jobID, domain.JobRunning).
		Updates(map[string]any{
			"heartbeat_at":     now,
			"lease_expires_at": now.Add(leaseDuration),
		})
	if res.Error != nil {
		return fmt.Errorf("heartbeat batch job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("heartbeat batch job %s: %w", jobID, domain.ErrJobNotFound)
	}
	return nil
}

func (r *BatchJobRepository) UpdateProgress(ctx context.Context, jobID string, progress domain.BatchProgress) error {
	err := r.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"progress_processed": progress.Processed,
			"progress_total":     progress.Total,
		}).Error
	if err != nil {
		return fmt.Errorf("update batch progress: %w", err)
	}
	return nil
}

// Complete marks the run finished and stores the summary tally plus the
// serialized reconciliation report on the job row.
func (r *BatchJobRepository) Complete(ctx context.Context, jobID string, summary domain.BatchSummary, reportJSON []byte) error {
	now := time.Now().UTC()
	report := string(reportJSON)
	err := r.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":         domain.JobCompleted,
			"created_count":  summary.Created,
			"existing_count": summary.Existing,
			"failed_count":   summary.Failed,
			"report":         report,
			"finished_at":    now,
			"error_message":  nil,
		}).Error
	if err != nil {
		return fmt.Errorf("complete batch job: %w", err)
	}
	return nil
}

func (r *BatchJobRepository) Requeue(ctx context.Context, jobID string, reason string) error {
	err := r.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":           domain.JobQueued,
			"error_message":    reason,
			"lease_expires_at": nil,
			"heartbeat_at":     nil,
		}).Error
	if err != nil {
		return fmt.Errorf("requeue batch job: %w", err)
	}
	return nil
}

func (r *BatchJobRepository) Fail(ctx context.Context, jobID string, reason string) error {
	err := r.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":        domain.JobFailed,
			"error_message": reason,
			"finished_at":   time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("fail batch job: %w", err)
	}
	return nil
}

func (r *BatchJobRepository) GetByID(ctx context.Context, jobID string) (*domain.BatchJob, error) {
	var row models.BatchJob
	err := r.db.WithContext(ctx).First(&row, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("get batch job by id: %w", err)
	}
	return toDomainJob(row), nil
}

func toDomainJob(row models.BatchJob) *domain.BatchJob {
	job := &domain.BatchJob{
		ID:          row.ID,
		SourcePath:  row.SourcePath,
		Status:      row.Status,
		Attempts:    row.Attempts,
		MaxAttempts: row.MaxAttempts,
		Progress: domain.BatchProgress{
			Processed: row.ProgressProcessed,
			Total:     row.ProgressTotal,
		},
		Summary: domain.BatchSummary{
			Created:  row.CreatedCount,
			Existing: row.ExistingCount,
			Failed:   row.FailedCount,
		},
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
		CreatedAt:  row.CreatedAt,
	}
	if row.RunID != nil {
		job.RunID = *row.RunID
	}
	if row.Report != nil {
		job.ReportJSON = []byte(*row.Report)
	}
	if row.ErrorMessage != nil {
		job.ErrorMessage = *row.ErrorMessage
	}
	return job
}
