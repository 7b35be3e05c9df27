package provisioning

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

type StartBatchInput struct {
	SourcePath string
}

type StartBatchOutput struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type StartBatch interface {
	Execute(ctx context.Context, in StartBatchInput) (StartBatchOutput, error)
}

type startBatch struct {
	jobRepo domain.BatchJobRepository
}

func NewStartBatch(jobRepo domain.BatchJobRepository) StartBatch {
	return &startBatch{jobRepo: jobRepo}
}

func (uc *startBatch) Execute(ctx context.Context, in StartBatchInput) (StartBatchOutput, error) {
	sourcePath := strings.TrimSpace(in.SourcePath)
	if sourcePath == "" || strings.ToLower(filepath.Ext(sourcePath)) != ".json" {
		return StartBatchOutput{}, ErrInvalidBatchSource
	}

	jobID, err := uc.jobRepo.Enqueue(ctx, sourcePath)
	if err != nil {
		return StartBatchOutput{}, fmt.Errorf("%w: %v", ErrEnqueueBatchJob, err)
	}

	return StartBatchOutput{
		JobID:  jobID,
		Status: domain.JobQueued,
	}, nil
}
