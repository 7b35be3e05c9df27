package provisioning

import "time"

// Batch job lifecycle statuses as stored in the queue.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// BatchJob is one provisioning run in the queue: a pointer to the source
// record file plus lease bookkeeping. RunID correlates every artifact the run
// produces and is assigned when the job is claimed.
type BatchJob struct {
	ID          string
	RunID       string
	SourcePath  string
	Status      string
	Attempts    int
	MaxAttempts int

	Progress BatchProgress
	Summary  BatchSummary

	// ReportJSON is the stored reconciliation report of a completed run.
	ReportJSON []byte

	ErrorMessage string
	StartedAt    *time.Time
	FinishedAt   *time.Time
	CreatedAt    time.Time
}

// BatchProgress is the coarse progress the worker reports back while a run is
// in flight.
type BatchProgress struct {
	Processed int64
	Total     int64
}

// BatchSummary is the directory-slot tally stored on the finished job row,
// a quick answer without unpacking the full report.
type BatchSummary struct {
	Created  int64
	Existing int64
	Failed   int64
}
