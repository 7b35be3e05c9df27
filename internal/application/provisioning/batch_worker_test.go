package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
	"github.com/campuskit/provisioner/internal/emailgen"
	"github.com/campuskit/provisioner/internal/export"
)

type fakeJobRepo struct {
	requeued   []string
	failed     []string
	progress   []domain.BatchProgress
	completed  bool
	summary    domain.BatchSummary
	reportJSON []byte
	heartbeats int
	requeueErr error
}

func (f *fakeJobRepo) ClaimNext(context.Context, string, time.Duration) (*domain.BatchJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) Heartbeat(context.Context, string, time.Duration) error {
	f.heartbeats++
	return nil
}

func (f *fakeJobRepo) UpdateProgress(_ context.Context, _ string, p domain.BatchProgress) error {
	f.progress = append(f.progress, p)
	return nil
}

func (f *fakeJobRepo) Complete(_ context.Context, _ string, summary domain.BatchSummary, reportJSON []byte) error {
	f.completed = true
	f.summary = summary
	f.reportJSON = reportJSON
	return nil
}

func (f *fakeJobRepo) Requeue(_ context.Context, jobID, reason string) error {
	if f.requeueErr != nil {
		return f.requeueErr
	}
	f.requeued = append(f.requeued, reason)
	_ = jobID
	return nil
}

func (f *fakeJobRepo) Fail(_ context.Context, _, reason string) error {
	f.failed = append(f.failed, reason)
	return nil
}

type fakeSource struct {
	payload []byte
	err     error
	opened  []string
}

func (f *fakeSource) Open(_ context.Context, sourcePath string) (io.ReadCloser, error) {
	f.opened = append(f.opened, sourcePath)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.payload)), nil
}

type fakeOutcomes struct {
	jobID   string
	runID   string
	records []*domain.UserRecord
	err     error
}

func (f *fakeOutcomes) SaveOutcomes(_ context.Context, jobID, runID string, records []*domain.UserRecord) (int64, error) {
	f.jobID, f.runID, f.records = jobID, runID, records
	return int64(len(records)), f.err
}

type fakeEmailSource struct {
	users []emailgen.DirectoryUser
	err   error
}

func (f *fakeEmailSource) ListDomainUsers(context.Context, string) ([]emailgen.DirectoryUser, error) {
	return f.users, f.err
}

// closeAllRunner closes every open record as created on all platforms and
// folds the batch, standing in for the full engine.
type closeAllRunner struct {
	ran     bool
	records []*domain.UserRecord
}

func (r *closeAllRunner) Run(_ context.Context, runID string, records []*domain.UserRecord) (*domain.ReconciliationReport, error) {
	r.ran = true
	r.records = records
	for _, rec := range records {
		if rec.Statuses.Complete() {
			continue
		}
		if err := rec.Statuses.SetDirectory(domain.Created()); err != nil {
			return nil, err
		}
		if err := rec.Statuses.SetNotification(domain.Created()); err != nil {
			return nil, err
		}
		if err := rec.Statuses.SetWeb(domain.Created()); err != nil {
			return nil, err
		}
	}
	return domain.BuildReport(runID, time.Now().UTC(), records)
}

type captureExporter struct {
	artifacts *export.RunArtifacts
}

func (c *captureExporter) Export(_ context.Context, a export.RunArtifacts) error {
	c.artifacts = &a
	return nil
}

func validPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal([]map[string]string{
		{
			"given_name":     "Ana María",
			"family_name":    "García López",
			"identification": "1002003004",
			"document_type":  "CC",
			"personal_email": "ana@example.com",
			"affiliation":    "student",
			"program":        "Systems Engineering",
		},
		{
			"given_name":     "Pedro",
			"family_name":    "Pérez",
			"identification": "not-a-number",
			"document_type":  "CC",
			"personal_email": "pedro@example.com",
			"affiliation":    "faculty",
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

func newTestWorker(repo *fakeJobRepo, source *fakeSource, outcomes *fakeOutcomes, emails *fakeEmailSource, runner BatchRunner, exporters []export.Exporter) *BatchWorker {
	factory := func(context.Context) (BatchRunner, error) { return runner, nil }
	return NewBatchWorker(repo, source, outcomes, emails, factory, exporters, BatchWorkerConfig{
		InstitutionalDomain: "campus.edu",
	}, nil)
}

func TestProcessJobCompletesAndCarriesInvalidRows(t *testing.T) {
	repo := &fakeJobRepo{}
	source := &fakeSource{payload: validPayload(t)}
	outcomes := &fakeOutcomes{}
	runner := &closeAllRunner{}
	exporter := &captureExporter{}

	w := newTestWorker(repo, source, outcomes, &fakeEmailSource{}, runner, []export.Exporter{exporter})

	job := domain.BatchJob{ID: "job-1", RunID: "20240315_103000", SourcePath: "batch.json", MaxAttempts: 5}
	if err := w.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	if !runner.ran {
		t.Fatal("engine never ran")
	}
	if len(runner.records) != 2 {
		t.Fatalf("engine got %d records, want 2 (invalid rows are carried, not dropped)", len(runner.records))
	}

	valid, invalid := runner.records[0], runner.records[1]
	if valid.InstitutionalEmail != "ana.garcia@campus.edu" {
		t.Errorf("derived email = %q", valid.InstitutionalEmail)
	}
	if !invalid.Statuses.Complete() {
		t.Error("invalid row should arrive closed")
	}
	out, _ := invalid.Statuses.Get(domain.PlatformDirectory)
	if out.Status != domain.StatusFailed || !strings.Contains(out.Reason, "digits") {
		t.Errorf("invalid row directory slot = %+v", out)
	}

	if !repo.completed {
		t.Fatal("job never completed")
	}
	if repo.summary.Created != 1 || repo.summary.Failed != 1 {
		t.Errorf("summary = %+v", repo.summary)
	}
	if len(repo.reportJSON) == 0 {
		t.Error("no report stored on the job")
	}
	if outcomes.jobID != "job-1" || outcomes.runID != "20240315_103000" || len(outcomes.records) != 2 {
		t.Errorf("outcomes persisted for %s/%s with %d records", outcomes.jobID, outcomes.runID, len(outcomes.records))
	}
	if exporter.artifacts == nil || exporter.artifacts.Report.Total != 2 {
		t.Error("exporter did not receive the run artifacts")
	}
}

func TestProcessJobKeepsKnownDirectoryAddress(t *testing.T) {
	repo := &fakeJobRepo{}
	source := &fakeSource{payload: validPayload(t)}
	emails := &fakeEmailSource{users: []emailgen.DirectoryUser{
		{Email: "agarcia@campus.edu", DisplayName: "Ana María García López"},
	}}

	w := newTestWorker(repo, source, &fakeOutcomes{}, emails, &closeAllRunner{}, nil)

	runner := &closeAllRunner{}
	w.runner = func(context.Context) (BatchRunner, error) { return runner, nil }

	job := domain.BatchJob{ID: "job-1", RunID: "r", SourcePath: "batch.json", MaxAttempts: 5}
	if err := w.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	if got := runner.records[0].InstitutionalEmail; got != "agarcia@campus.edu" {
		t.Errorf("known address not kept: %q", got)
	}
	if len(runner.records[0].Observations) == 0 {
		t.Error("expected an observation about the matched directory user")
	}
}

func TestProcessJobRequeuesWhileAttemptsRemain(t *testing.T) {
	repo := &fakeJobRepo{}
	source := &fakeSource{err: errors.New("no such file")}

	w := newTestWorker(repo, source, &fakeOutcomes{}, &fakeEmailSource{}, &closeAllRunner{}, nil)

	job := domain.BatchJob{ID: "job-1", SourcePath: "missing.json", Attempts: 1, MaxAttempts: 5}
	if err := w.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}

	if len(repo.requeued) != 1 {
		t.Fatalf("requeued %d times, want 1", len(repo.requeued))
	}
	if len(repo.failed) != 0 {
		t.Fatal("must not fail while attempts remain")
	}
}

func TestProcessJobFailsOnLastAttempt(t *testing.T) {
	repo := &fakeJobRepo{}
	source := &fakeSource{err: errors.New("no such file")}

	w := newTestWorker(repo, source, &fakeOutcomes{}, &fakeEmailSource{}, &closeAllRunner{}, nil)

	job := domain.BatchJob{ID: "job-1", SourcePath: "missing.json", Attempts: 5, MaxAttempts: 5}
	if err := w.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}

	if len(repo.failed) != 1 {
		t.Fatalf("failed %d times, want 1", len(repo.failed))
	}
	if len(repo.requeued) != 0 {
		t.Fatal("must not requeue on the last attempt")
	}
}

func TestProcessJobRejectsNonArrayPayload(t *testing.T) {
	repo := &fakeJobRepo{}
	source := &fakeSource{payload: []byte(`{"oops": true}`)}

	w := newTestWorker(repo, source, &fakeOutcomes{}, &fakeEmailSource{}, &closeAllRunner{}, nil)

	job := domain.BatchJob{ID: "job-1", SourcePath: "batch.json", MaxAttempts: 5}
	if err := w.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected decode error")
	}
	if len(repo.requeued) != 1 {
		t.Fatal("decode failure should requeue")
	}
}
