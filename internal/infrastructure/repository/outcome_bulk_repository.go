package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

// OutcomeBulkRepository persists the enriched per-record outcomes of a
// finished run in one COPY, so even large batches land in a single round
// trip.
type OutcomeBulkRepository struct {
	pool *pgxpool.Pool
}

func NewOutcomeBulkRepository(pool *pgxpool.Pool) *OutcomeBulkRepository {
	return &OutcomeBulkRepository{pool: pool}
}

var outcomeColumns = []string{
	"job_id", "run_id", "row_index",
	"identification", "full_name", "institutional_email", "personal_email",
	"affiliation", "program",
	"directory_status", "directory_reason",
	"web_status", "web_reason",
	"notification_status", "notification_reason",
	"web_screenshot", "observations",
}

func (r *OutcomeBulkRepository) SaveOutcomes(ctx context.Context, jobID, runID string, records []*domain.UserRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		row, err := outcomeRow(jobID, runID, int64(i), rec)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	copied, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"record_outcomes"},
		outcomeColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy record outcomes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return copied, nil
}

func outcomeRow(jobID, runID string, index int64, rec *domain.UserRecord) ([]any, error) {
	row := []any{
		jobID, runID, index,
		rec.Identification, rec.FullName(), rec.InstitutionalEmail, rec.PersonalEmail,
		string(rec.Affiliation), rec.Program,
	}
	for _, p := range domain.Platforms {
		out, ok := rec.Statuses.Get(p)
		if !ok {
			return nil, fmt.Errorf("record %s platform %s: %w", rec.Identification, p, domain.ErrIncompleteStatuses)
		}
		row = append(row, string(out.Status), nullableText(out.Reason))
	}
	row = append(row,
		nullableText(rec.Screenshots[domain.PlatformWeb]),
		nullableText(strings.Join(rec.Observations, "\n")),
	)
	return row, nil
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
