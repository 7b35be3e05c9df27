package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

type GetBatchInput struct {
	ID string
}

type GetBatchOutput struct {
	JobID        string           `json:"job_id"`
	RunID        string           `json:"run_id,omitempty"`
	Status       string           `json:"status"`
	SourcePath   string           `json:"source_path"`
	Processed    int64            `json:"processed"`
	Total        int64            `json:"total"`
	Created      int64            `json:"created"`
	Existing     int64            `json:"existing"`
	Failed       int64            `json:"failed"`
	ErrorMessage string           `json:"error_message,omitempty"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
	Report       *json.RawMessage `json:"report,omitempty"`
}

type GetBatch interface {
	Execute(ctx context.Context, in GetBatchInput) (GetBatchOutput, error)
}

type batchJobReader interface {
	GetByID(ctx context.Context, jobID string) (*domain.BatchJob, error)
}

type getBatch struct {
	repo batchJobReader
}

func NewGetBatch(repo batchJobReader) GetBatch {
	return &getBatch{repo: repo}
}

func (uc *getBatch) Execute(ctx context.Context, in GetBatchInput) (GetBatchOutput, error) {
	if _, err := uuid.Parse(in.ID); err != nil {
		return GetBatchOutput{}, ErrInvalidJobID
	}

	job, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return GetBatchOutput{}, ErrBatchJobNotFound
		}
		return GetBatchOutput{}, fmt.Errorf("%w: %v", ErrGetBatchJob, err)
	}

	out := GetBatchOutput{
		JobID:        job.ID,
		RunID:        job.RunID,
		Status:       job.Status,
		SourcePath:   job.SourcePath,
		Processed:    job.Progress.Processed,
		Total:        job.Progress.Total,
		Created:      job.Summary.Created,
		Existing:     job.Summary.Existing,
		Failed:       job.Summary.Failed,
		ErrorMessage: job.ErrorMessage,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
	}
	if len(job.ReportJSON) > 0 {
		raw := json.RawMessage(job.ReportJSON)
		out.Report = &raw
	}
	return out, nil
}
