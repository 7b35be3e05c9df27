// Package export defines the contract every report renderer consumes, so all
// artifacts of one run agree on status presentation and row limits.
package export

import (
	"context"
	"fmt"
	"time"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

// detailRowCap bounds the per-record rows in human-facing renderings; the
// remainder is summarized with a pointer to the machine-readable artifact.
const detailRowCap = 50

// RunArtifacts is what a finished batch hands to each exporter: the folded
// report plus the enriched records it was folded from.
type RunArtifacts struct {
	RunID       string
	GeneratedAt time.Time
	Report      domain.ReconciliationReport
	Records     []*domain.UserRecord
}

// Exporter renders one artifact of a finished run.
type Exporter interface {
	Export(ctx context.Context, artifacts RunArtifacts) error
}

// Marker maps a platform status to its presentation token. Every renderer
// uses this mapping so an AlreadyExisted account reads as a distinct
// non-error everywhere.
func Marker(s domain.PlatformStatus) string {
	switch s {
	case domain.StatusCreated:
		return "OK"
	case domain.StatusAlreadyExisted:
		return "EXISTS"
	case domain.StatusFailed:
		return "ERROR"
	case domain.StatusNotApplicable:
		return "N/A"
	}
	return "?"
}

// DetailRow is one record's line in a human-facing rendering.
type DetailRow struct {
	Identification     string
	FullName           string
	InstitutionalEmail string
	Directory          string
	Web                string
	Notification       string
}

// DetailRows renders per-record rows capped at the detail limit. The second
// return is the summary line for the remainder, empty when everything fit.
func DetailRows(records []*domain.UserRecord) ([]DetailRow, string) {
	n := len(records)
	if n > detailRowCap {
		n = detailRowCap
	}

	rows := make([]DetailRow, 0, n)
	for _, rec := range records[:n] {
		rows = append(rows, DetailRow{
			Identification:     rec.Identification,
			FullName:           rec.FullName(),
			InstitutionalEmail: rec.InstitutionalEmail,
			Directory:          markerFor(rec, domain.PlatformDirectory),
			Web:                markerFor(rec, domain.PlatformWeb),
			Notification:       markerFor(rec, domain.PlatformNotification),
		})
	}

	summary := ""
	if rest := len(records) - n; rest > 0 {
		summary = fmt.Sprintf("... and %d more records, see the JSON export for the full detail", rest)
	}
	return rows, summary
}

func markerFor(rec *domain.UserRecord, p domain.Platform) string {
	out, ok := rec.Statuses.Get(p)
	if !ok {
		return "?"
	}
	return Marker(out.Status)
}
