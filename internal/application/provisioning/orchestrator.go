package provisioning

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

// Reasons attached to slots that were foreclosed by batch-level events rather
// than by a per-record provider failure.
const (
	ReasonLogin     = "login"
	ReasonCancelled = "cancelled"
	ReasonDuplicate = "duplicate identification in batch"
)

const defaultDirectoryConcurrency = 4

type OrchestratorConfig struct {
	// DirectoryConcurrency bounds the parallel directory/notification work.
	// The web phase is always serialized through the single browser session.
	DirectoryConcurrency int
	// BatchTimeout, when positive, caps the whole run. On expiry every
	// not-yet-completed slot is closed as Failed("cancelled").
	BatchTimeout time.Duration
}

// Orchestrator drives every record of a batch through the fixed phase order
// directory -> notification -> web, isolates per-record failures, applies the
// systemic login and cancellation rules, and folds the closed batch into one
// reconciliation report.
type Orchestrator struct {
	directory domain.DirectoryProvisioner
	web       domain.WebProvisioner
	notifier  domain.NotificationSender
	cfg       OrchestratorConfig
	log       *zap.Logger
}

func NewOrchestrator(directory domain.DirectoryProvisioner, web domain.WebProvisioner, notifier domain.NotificationSender, cfg OrchestratorConfig, log *zap.Logger) *Orchestrator {
	if cfg.DirectoryConcurrency <= 0 {
		cfg.DirectoryConcurrency = defaultDirectoryConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		directory: directory,
		web:       web,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
	}
}

// Run processes the batch and returns its reconciliation report. Records are
// mutated in place; once Run returns they are closed and read-only. Run only
// returns an error when the report itself cannot be built, never for
// per-record or systemic provisioning failures.
func (o *Orchestrator) Run(ctx context.Context, runID string, records []*domain.UserRecord) (*domain.ReconciliationReport, error) {
	if o.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.BatchTimeout)
		defer cancel()
	}

	work := o.markDuplicates(records)

	o.runDirectoryPhase(ctx, work)
	o.runWebPhase(ctx, work)

	// Cancellation or timeout may have left slots open; the report invariant
	// requires every record to close with a status in every slot.
	for _, rec := range records {
		if !rec.Statuses.Complete() {
			rec.Statuses.FailPending(ReasonCancelled)
		}
	}

	return domain.BuildReport(runID, time.Now().UTC(), records)
}

// markDuplicates applies the documented duplicate policy: the first occurrence
// of an identification is processed, later occurrences are not sent to any
// platform. Records already closed by intake validation are carried through
// untouched and claim no identification. Returns the records that remain
// actionable.
func (o *Orchestrator) markDuplicates(records []*domain.UserRecord) []*domain.UserRecord {
	seen := make(map[string]int, len(records))
	work := make([]*domain.UserRecord, 0, len(records))

	for i, rec := range records {
		if rec.Statuses.Complete() {
			continue
		}

		first, dup := seen[rec.Identification]
		if !dup {
			seen[rec.Identification] = i
			work = append(work, rec)
			continue
		}

		o.setSlot(rec, rec.Statuses.SetDirectory(domain.Failed(ReasonDuplicate)))
		o.setSlot(rec, rec.Statuses.SetWeb(domain.Failed(ReasonDuplicate)))
		o.setSlot(rec, rec.Statuses.SetNotification(domain.Outcome{Status: domain.StatusNotApplicable}))
		rec.Observe("identification already appears at row " + strconv.Itoa(first+1) + "; this occurrence was not processed")
		o.log.Warn("duplicate identification in batch",
			zap.String("identification", rec.Identification),
			zap.Int("first_row", first+1),
			zap.Int("duplicate_row", i+1))
	}

	return work
}

// runDirectoryPhase runs the directory step and its dependent notification
// step per record, with bounded concurrency. One request per record; records
// never share mutable state, so no cross-record ordering is guaranteed here.
func (o *Orchestrator) runDirectoryPhase(ctx context.Context, records []*domain.UserRecord) {
	sem := make(chan struct{}, o.cfg.DirectoryConcurrency)
	var wg sync.WaitGroup

	for _, rec := range records {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			o.provisionDirectory(ctx, rec)
		}()
	}

	wg.Wait()
}

func (o *Orchestrator) provisionDirectory(ctx context.Context, rec *domain.UserRecord) {
	result := o.directory.Ensure(ctx, *rec)
	o.setSlot(rec, rec.Statuses.SetDirectory(result.Outcome))
	for _, note := range result.Observations {
		rec.Observe(note)
	}

	log := o.log.With(zap.String("identification", rec.Identification))

	switch result.Outcome.Status {
	case domain.StatusCreated:
		rec.Credential = result.Credential
		log.Info("directory account created", zap.String("email", rec.InstitutionalEmail))

		sent := o.notifier.Send(ctx, *rec)
		o.setSlot(rec, rec.Statuses.SetNotification(sent))
		if sent.Status == domain.StatusFailed {
			log.Warn("welcome notification failed", zap.String("reason", sent.Reason))
		}

	case domain.StatusAlreadyExisted:
		// nothing new was minted, nothing to notify
		o.setSlot(rec, rec.Statuses.SetNotification(domain.Outcome{Status: domain.StatusNotApplicable}))
		log.Info("directory account already existed")

	case domain.StatusFailed:
		o.setSlot(rec, rec.Statuses.SetNotification(domain.Outcome{Status: domain.StatusNotApplicable}))
		log.Warn("directory provisioning failed", zap.String("reason", result.Outcome.Reason))
	}
}

// runWebPhase drives the browser platform serially over the records in input
// order. The authenticated session is torn down on every exit path. The web
// platform is an unrelated account system, so records whose directory phase
// failed are still attempted here.
func (o *Orchestrator) runWebPhase(ctx context.Context, records []*domain.UserRecord) {
	// The browser session exists whether or not this phase gets to run, so
	// teardown must be registered before the cancellation check.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := o.web.Close(closeCtx); err != nil {
			o.log.Warn("web session teardown failed", zap.Error(err))
		}
	}()

	if ctx.Err() != nil {
		return
	}

	if err := o.web.Login(ctx); err != nil {
		// systemic: a broken session cannot selectively affect individual
		// users, so the whole phase is foreclosed without per-record attempts
		o.log.Error("web platform login failed", zap.Error(err))
		for _, rec := range records {
			if _, set := rec.Statuses.Get(domain.PlatformWeb); !set {
				o.setSlot(rec, rec.Statuses.SetWeb(domain.Failed(ReasonLogin)))
			}
		}
		return
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}

		result := o.web.Ensure(ctx, *rec)
		o.setSlot(rec, rec.Statuses.SetWeb(result.Outcome))
		if result.Screenshot != "" {
			rec.Screenshots[domain.PlatformWeb] = result.Screenshot
		}

		log := o.log.With(zap.String("identification", rec.Identification))
		switch result.Outcome.Status {
		case domain.StatusCreated:
			log.Info("web account created")
		case domain.StatusAlreadyExisted:
			log.Info("web account already existed")
			if dir, set := rec.Statuses.Get(domain.PlatformDirectory); set && dir.Status == domain.StatusCreated {
				// conservative inference disagreed with the authoritative
				// directory; worth an audit note, not an error
				rec.Observe("directory created a new account but the web platform inferred an existing one")
				log.Warn("directory/web existence mismatch")
			}
		case domain.StatusFailed:
			log.Warn("web provisioning failed", zap.String("reason", result.Outcome.Reason))
		}
	}
}

// setSlot logs slot-invariant violations. The orchestrator is the only status
// writer, so a non-nil error here is a sequencing bug, not a data problem.
func (o *Orchestrator) setSlot(rec *domain.UserRecord, err error) {
	if err != nil {
		o.log.Error("status slot write rejected",
			zap.String("identification", rec.Identification),
			zap.Error(err))
	}
}
