package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
	"github.com/campuskit/provisioner/internal/emailgen"
	"github.com/campuskit/provisioner/internal/export"
)

// BatchSource opens the record file a job points at.
type BatchSource interface {
	Open(ctx context.Context, sourcePath string) (io.ReadCloser, error)
}

// BatchRunner drives one batch of records and folds it into a report.
type BatchRunner interface {
	Run(ctx context.Context, runID string, records []*domain.UserRecord) (*domain.ReconciliationReport, error)
}

// RunnerFactory builds the engine for one claimed job. The web platform's
// browser session is batch-scoped, so every run gets a fresh engine.
type RunnerFactory func(ctx context.Context) (BatchRunner, error)

type batchWorkerJobRepo interface {
	ClaimNext(ctx context.Context, runID string, leaseDuration time.Duration) (*domain.BatchJob, error)
	Heartbeat(ctx context.Context, jobID string, leaseDuration time.Duration) error
	UpdateProgress(ctx context.Context, jobID string, progress domain.BatchProgress) error
	Complete(ctx context.Context, jobID string, summary domain.BatchSummary, reportJSON []byte) error
	Requeue(ctx context.Context, jobID string, reason string) error
	Fail(ctx context.Context, jobID string, reason string) error
}

type outcomeSaver interface {
	SaveOutcomes(ctx context.Context, jobID, runID string, records []*domain.UserRecord) (int64, error)
}

type directoryEmailSource interface {
	ListDomainUsers(ctx context.Context, domain string) ([]emailgen.DirectoryUser, error)
}

type BatchWorkerConfig struct {
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration

	// InstitutionalDomain is the mail domain institutional addresses are
	// derived on when the intake row does not carry one.
	InstitutionalDomain string
}

// BatchWorker drains the job queue one batch at a time; runs never overlap
// because each holds the single authenticated browser session.
type BatchWorker struct {
	repo      batchWorkerJobRepo
	source    BatchSource
	outcomes  outcomeSaver
	directory directoryEmailSource
	runner    RunnerFactory
	exporters []export.Exporter
	cfg       BatchWorkerConfig
	log       *zap.Logger

	now  func() time.Time
	once sync.Once
}

func NewBatchWorker(
	repo batchWorkerJobRepo,
	source BatchSource,
	outcomes outcomeSaver,
	directory directoryEmailSource,
	runner RunnerFactory,
	exporters []export.Exporter,
	cfg BatchWorkerConfig,
	log *zap.Logger,
) *BatchWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 5 * time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LeaseDuration / 2
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &BatchWorker{
		repo:      repo,
		source:    source,
		outcomes:  outcomes,
		directory: directory,
		runner:    runner,
		exporters: exporters,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func (w *BatchWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		go w.loop(ctx)
	})
}

func (w *BatchWorker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		runID := w.now().UTC().Format("20060102_150405")
		job, err := w.repo.ClaimNext(ctx, runID, w.cfg.LeaseDuration)
		if err != nil {
			w.log.Error("claim batch job failed", zap.Error(err))
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if job == nil {
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if err := w.ProcessJob(ctx, *job); err != nil {
			w.log.Error("process batch job failed",
				zap.String("job_id", job.ID),
				zap.String("run_id", job.RunID),
				zap.Error(err))
		}
	}
}

// ProcessJob runs one claimed batch end to end: decode and validate the
// intake rows, derive missing institutional emails, drive the orchestration
// engine, persist the enriched outcomes and the report, run the exporters.
func (w *BatchWorker) ProcessJob(ctx context.Context, job domain.BatchJob) error {
	stopHeartbeat := w.heartbeatLoop(ctx, job.ID)
	defer stopHeartbeat()

	records, err := w.loadRecords(ctx, job.SourcePath)
	if err != nil {
		return w.onProcessingError(ctx, job, err)
	}

	total := int64(len(records))
	if err := w.repo.UpdateProgress(ctx, job.ID, domain.BatchProgress{Total: total}); err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("update initial progress: %w", err))
	}

	if err := w.attachInstitutionalEmails(ctx, records); err != nil {
		return w.onProcessingError(ctx, job, err)
	}

	runner, err := w.runner(ctx)
	if err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("build batch engine: %w", err))
	}

	report, err := runner.Run(ctx, job.RunID, records)
	if err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("run batch: %w", err))
	}

	if _, err := w.outcomes.SaveOutcomes(ctx, job.ID, job.RunID, records); err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("persist outcomes: %w", err))
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("encode report: %w", err))
	}

	if err := w.repo.UpdateProgress(ctx, job.ID, domain.BatchProgress{Processed: total, Total: total}); err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("update final progress: %w", err))
	}

	directoryCounts := report.Platforms[domain.PlatformDirectory]
	summary := domain.BatchSummary{
		Created:  int64(directoryCounts.Created),
		Existing: int64(directoryCounts.AlreadyExisted),
		Failed:   int64(directoryCounts.Failed),
	}
	if err := w.repo.Complete(ctx, job.ID, summary, reportJSON); err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("complete job: %w", err))
	}

	// exporters render artifacts of an already-completed run; their failures
	// are logged, never fatal
	artifacts := export.RunArtifacts{
		RunID:       job.RunID,
		GeneratedAt: report.GeneratedAt,
		Report:      *report,
		Records:     records,
	}
	for _, exp := range w.exporters {
		if err := exp.Export(ctx, artifacts); err != nil {
			w.log.Error("exporter failed",
				zap.String("run_id", job.RunID),
				zap.Error(err))
		}
	}

	w.log.Info("batch completed",
		zap.String("job_id", job.ID),
		zap.String("run_id", job.RunID),
		zap.Int("total", report.Total),
		zap.Int64("directory_created", summary.Created),
		zap.Int64("directory_existing", summary.Existing),
		zap.Int64("directory_failed", summary.Failed))
	return nil
}

// heartbeatLoop extends the job lease until the returned stop function is
// called.
func (w *BatchWorker) heartbeatLoop(ctx context.Context, jobID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.repo.Heartbeat(ctx, jobID, w.cfg.LeaseDuration); err != nil {
					w.log.Warn("heartbeat failed", zap.String("job_id", jobID), zap.Error(err))
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

type rawRecord struct {
	GivenName          string `json:"given_name"`
	FamilyName         string `json:"family_name"`
	Identification     string `json:"identification"`
	DocumentType       string `json:"document_type"`
	PersonalEmail      string `json:"personal_email"`
	InstitutionalEmail string `json:"institutional_email"`
	Affiliation        string `json:"affiliation"`
	Program            string `json:"program"`
}

// loadRecords decodes and validates the intake rows. A row that fails
// validation is never dropped: it is carried through with every slot already
// failed so report counts still partition the batch.
func (w *BatchWorker) loadRecords(ctx context.Context, sourcePath string) ([]*domain.UserRecord, error) {
	reader, err := w.source.Open(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("open batch source: %w", err)
	}
	defer reader.Close()

	var raws []rawRecord
	if err := json.NewDecoder(reader).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode batch payload: %w", err)
	}

	records := make([]*domain.UserRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := domain.NewUserRecord(
			raw.GivenName, raw.FamilyName, raw.Identification,
			raw.DocumentType, raw.PersonalEmail, raw.Program, raw.Affiliation,
		)
		if err != nil {
			rec = invalidRecord(raw, i, err)
			w.log.Warn("intake row rejected",
				zap.Int("row", i+1),
				zap.String("identification", raw.Identification),
				zap.Error(err))
		} else if raw.InstitutionalEmail != "" {
			rec.InstitutionalEmail = strings.ToLower(strings.TrimSpace(raw.InstitutionalEmail))
		}
		records = append(records, rec)
	}
	return records, nil
}

// invalidRecord carries a rejected intake row through the batch with every
// slot closed as failed, so it shows up in the report instead of vanishing.
func invalidRecord(raw rawRecord, index int, cause error) *domain.UserRecord {
	rec := &domain.UserRecord{
		GivenName:      strings.TrimSpace(raw.GivenName),
		FamilyName:     strings.TrimSpace(raw.FamilyName),
		Identification: strings.TrimSpace(raw.Identification),
		PersonalEmail:  strings.TrimSpace(raw.PersonalEmail),
		Program:        strings.TrimSpace(raw.Program),
		Screenshots:    make(map[domain.Platform]string),
	}
	rec.Statuses.FailPending(cause.Error())
	rec.Observe(fmt.Sprintf("intake row %d rejected: %v", index+1, cause))
	return rec
}

// attachInstitutionalEmails fills the institutional address of every record
/// that did not bring one: an existing directory user detected by name keeps
// its known address, everyone else gets a fresh collision-free derivation.
func (w *BatchWorker) attachInstitutionalEmails(ctx context.Context, records []*domain.UserRecord) error {
	gen := emailgen.New(w.cfg.InstitutionalDomain)

	existing, err := w.directory.ListDomainUsers(ctx, w.cfg.InstitutionalDomain)
	if err != nil {
		return fmt.Errorf("list directory users: %w", err)
	}
	gen.LoadExisting(existing)

	for _, rec := range records {
		if rec.InstitutionalEmail != "" || rec.Statuses.Complete() {
			continue
		}

		if known, ok := gen.LookupByName(rec.GivenName, rec.FamilyName); ok {
			rec.InstitutionalEmail = known
			rec.Observe("matched an existing directory user by name, kept address " + known)
			continue
		}

		first := firstWord(rec.GivenName)
		surname1, surname2 := splitSurnames(rec.FamilyName)
		email, err := gen.Generate(first, surname1, surname2)
		if err != nil {
			rec.Statuses.FailPending(fmt.Sprintf("derive institutional email: %v", err))
			continue
		}
		rec.InstitutionalEmail = email
	}
	return nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func splitSurnames(familyName string) (string, string) {
	fields := strings.Fields(familyName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], "")
	}
}

func (w *BatchWorker) onProcessingError(ctx context.Context, job domain.BatchJob, err error) error {
	reason := truncateReason(err.Error())
	if job.Attempts < job.MaxAttempts {
		if requeueErr := w.repo.Requeue(ctx, job.ID, reason); requeueErr != nil {
			return fmt.Errorf("%v; requeue failed: %w", err, requeueErr)
		}
		return err
	}

	if failErr := w.repo.Fail(ctx, job.ID, reason); failErr != nil {
		return fmt.Errorf("%v; fail update failed: %w", err, failErr)
	}
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
