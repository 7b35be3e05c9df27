package provisioning_test

import (
	"context"
	"errors"
	"testing"

	app "github.com/campuskit/provisioner/internal/application/provisioning"
	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

type fakeBatchJobReader struct {
	job       *domain.BatchJob
	returnErr error
}

func (f *fakeBatchJobReader) GetByID(ctx context.Context, jobID string) (*domain.BatchJob, error) {
	if f.returnErr != nil {
		return nil, f.returnErr
	}
	return f.job, nil
}

const validJobID = "0b6a8a44-9a5f-4b5e-9d5e-1d2f3a4b5c6d"

func TestGetBatchSuccess(t *testing.T) {
	t.Parallel()

	reader := &fakeBatchJobReader{job: &domain.BatchJob{
		ID:         validJobID,
		RunID:      "20240315_103000",
		Status:     domain.JobCompleted,
		SourcePath: "batch_records.json",
		Progress:   domain.BatchProgress{Processed: 20, Total: 20},
		Summary:    domain.BatchSummary{Created: 15, Existing: 3, Failed: 2},
		ReportJSON: []byte(`{"total":20}`),
	}}
	uc := app.NewGetBatch(reader)

	out, err := uc.Execute(context.Background(), app.GetBatchInput{ID: validJobID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Status != domain.JobCompleted {
		t.Fatalf("unexpected status: %s", out.Status)
	}
	if out.Created != 15 || out.Existing != 3 || out.Failed != 2 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.Report == nil || string(*out.Report) != `{"total":20}` {
		t.Fatal("expected stored report to be passed through verbatim")
	}
}

func TestGetBatchOmitsReportWhileRunning(t *testing.T) {
	t.Parallel()

	reader := &fakeBatchJobReader{job: &domain.BatchJob{
		ID:     validJobID,
		Status: domain.JobRunning,
	}}
	uc := app.NewGetBatch(reader)

	out, err := uc.Execute(context.Background(), app.GetBatchInput{ID: validJobID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Report != nil {
		t.Fatal("running job must not expose a report")
	}
}

func TestGetBatchInvalidID(t *testing.T) {
	t.Parallel()

	uc := app.NewGetBatch(&fakeBatchJobReader{})

	_, err := uc.Execute(context.Background(), app.GetBatchInput{ID: "not-a-uuid"})
	if !errors.Is(err, app.ErrInvalidJobID) {
		t.Fatalf("expected ErrInvalidJobID, got %v", err)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	t.Parallel()

	uc := app.NewGetBatch(&fakeBatchJobReader{returnErr: domain.ErrJobNotFound})

	_, err := uc.Execute(context.Background(), app.GetBatchInput{ID: validJobID})
	if !errors.Is(err, app.ErrBatchJobNotFound) {
		t.Fatalf("expected ErrBatchJobNotFound, got %v", err)
	}
}
