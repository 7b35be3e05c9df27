package provisioning_test

import (
	"context"
	"errors"
	"testing"

	app "github.com/campuskit/provisioner/internal/application/provisioning"
	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

type fakeBatchJobEnqueuer struct {
	jobID     string
	called    bool
	gotPath   string
	returnErr error
}

func (f *fakeBatchJobEnqueuer) Enqueue(ctx context.Context, sourcePath string) (string, error) {
	f.called = true
	f.gotPath = sourcePath
	if f.returnErr != nil {
		return "", f.returnErr
	}
	return f.jobID, nil
}

func TestStartBatchSuccess(t *testing.T) {
	t.Parallel()

	repo := &fakeBatchJobEnqueuer{jobID: "job-1"}
	uc := app.NewStartBatch(repo)

	out, err := uc.Execute(context.Background(), app.StartBatchInput{
		SourcePath: "batch_records.json",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !repo.called {
		t.Fatal("expected repository to be called")
	}
	if repo.gotPath != "batch_records.json" {
		t.Fatalf("unexpected source path: %s", repo.gotPath)
	}
	if out.JobID != "job-1" {
		t.Fatalf("unexpected job id: %s", out.JobID)
	}
	if out.Status != domain.JobQueued {
		t.Fatalf("unexpected status: %s", out.Status)
	}
}

func TestStartBatchInvalidPath(t *testing.T) {
	t.Parallel()

	uc := app.NewStartBatch(&fakeBatchJobEnqueuer{})

	for _, source := range []string{"", "records.csv", "  "} {
		_, err := uc.Execute(context.Background(), app.StartBatchInput{SourcePath: source})
		if !errors.Is(err, app.ErrInvalidBatchSource) {
			t.Fatalf("source %q: expected ErrInvalidBatchSource, got %v", source, err)
		}
	}
}

func TestStartBatchRepositoryError(t *testing.T) {
	t.Parallel()

	repoErr := errors.New("db down")
	uc := app.NewStartBatch(&fakeBatchJobEnqueuer{returnErr: repoErr})

	_, err := uc.Execute(context.Background(), app.StartBatchInput{SourcePath: "batch_records.json"})
	if !errors.Is(err, app.ErrEnqueueBatchJob) {
		t.Fatalf("expected ErrEnqueueBatchJob, got %v", err)
	}
}
