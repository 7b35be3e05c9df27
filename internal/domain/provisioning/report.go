package provisioning

import (
	"fmt"
	"time"
)

// PlatformCounts partitions a batch for one platform: every record contributes
// exactly one status, so the four counters always sum to the batch size.
type PlatformCounts struct {
	Created        int `json:"created"`
	AlreadyExisted int `json:"already_existed"`
	Failed         int `json:"failed"`
	NotApplicable  int `json:"not_applicable"`
}

func (c PlatformCounts) Total() int {
	return c.Created + c.AlreadyExisted + c.Failed + c.NotApplicable
}

// Percent returns the share of a status relative to the batch size, in the
// 0-100 range. A zero-sized batch yields 0 for every status.
func (c PlatformCounts) Percent(status PlatformStatus) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	var n int
	switch status {
	case StatusCreated:
		n = c.Created
	case StatusAlreadyExisted:
		n = c.AlreadyExisted
	case StatusFailed:
		n = c.Failed
	case StatusNotApplicable:
		n = c.NotApplicable
	}
	return float64(n) * 100 / float64(total)
}

// ReportError is one entry of the flat error list: which record, on which
// platform, with the provider's description. AlreadyExisted outcomes never
// produce an entry.
type ReportError struct {
	Identification string   `json:"identification"`
	FullName       string   `json:"full_name"`
	Platform       Platform `json:"platform"`
	Description    string   `json:"description"`
}

// ReconciliationReport is the immutable aggregate computed once over a closed
// batch. It is correlated to every other artifact of the run by RunID and
// GeneratedAt.
type ReconciliationReport struct {
	RunID       string                      `json:"run_id"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Total       int                         `json:"total"`
	Platforms   map[Platform]PlatformCounts `json:"platforms"`
	Errors      []ReportError               `json:"errors"`
}

// BuildReport folds every record's three slots into one report. It requires a
// closed batch: a record with an unset slot is a bug in the orchestrator and
// is reported as ErrIncompleteStatuses rather than silently skewing counts.
func BuildReport(runID string, generatedAt time.Time, records []*UserRecord) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Total:       len(records),
		Platforms:   make(map[Platform]PlatformCounts, len(Platforms)),
	}
	for _, p := range Platforms {
		report.Platforms[p] = PlatformCounts{}
	}

	for _, rec := range records {
		for _, p := range Platforms {
			outcome, ok := rec.Statuses.Get(p)
			if !ok {
				return nil, fmt.Errorf("%w: %s slot for %s", ErrIncompleteStatuses, p, rec.Identification)
			}

			counts := report.Platforms[p]
			switch outcome.Status {
			case StatusCreated:
				counts.Created++
			case StatusAlreadyExisted:
				counts.AlreadyExisted++
			case StatusFailed:
				counts.Failed++
				report.Errors = append(report.Errors, ReportError{
					Identification: rec.Identification,
					FullName:       rec.FullName(),
					Platform:       p,
					Description:    outcome.Reason,
				})
			case StatusNotApplicable:
				counts.NotApplicable++
			}
			report.Platforms[p] = counts
		}
	}

	return report, nil
}
