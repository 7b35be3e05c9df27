package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
	"github.com/campuskit/provisioner/internal/infrastructure/repository"
)

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	createSQL := `
    CREATE TABLE IF NOT EXISTS record_outcomes (
      id BIGSERIAL PRIMARY KEY,
      job_id UUID NOT NULL,
      run_id TEXT NOT NULL,
      row_index BIGINT NOT NULL,
      identification TEXT NOT NULL,
      full_name TEXT NOT NULL,
      institutional_email TEXT NOT NULL,
      personal_email TEXT NOT NULL,
      affiliation TEXT NOT NULL,
      program TEXT,
      directory_status TEXT NOT NULL,
      directory_reason TEXT,
      web_status TEXT NOT NULL,
      web_reason TEXT,
      notification_status TEXT NOT NULL,
      notification_reason TEXT,
      web_screenshot TEXT,
      observations TEXT,
      created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    `
	if _, err := pool.Exec(context.Background(), createSQL); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := pool.Exec(context.Background(), "DELETE FROM record_outcomes"); err != nil {
		t.Fatalf("failed to cleanup record_outcomes: %v", err)
	}

	return pool
}

func closedTestRecord(t *testing.T, id string, directory domain.Outcome) *domain.UserRecord {
	t.Helper()

	rec, err := domain.NewUserRecord("Diana", "Torres", id, "C.C", "diana@example.com", "Medicine", "student")
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	rec.InstitutionalEmail = "diana.torres" + id + "@campus.edu"

	if err := rec.Statuses.SetDirectory(directory); err != nil {
		t.Fatalf("set directory: %v", err)
	}
	if err := rec.Statuses.SetWeb(domain.Created()); err != nil {
		t.Fatalf("set web: %v", err)
	}
	var notification domain.Outcome
	if directory.Status == domain.StatusCreated {
		notification = domain.Created()
	} else {
		notification = domain.Outcome{Status: domain.StatusNotApplicable}
	}
	if err := rec.Statuses.SetNotification(notification); err != nil {
		t.Fatalf("set notification: %v", err)
	}
	return rec
}

func TestOutcomeBulkRepositorySaveOutcomesIntegration(t *testing.T) {
	pool := openTestPool(t)
	db := openTestDB(t)
	ctx := context.Background()

	jobID, err := repository.NewBatchJobRepository(db).Enqueue(ctx, "batch_records.json")
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	records := []*domain.UserRecord{
		closedTestRecord(t, "100200300", domain.Created()),
		closedTestRecord(t, "100200301", domain.Failed("employeeId rejected")),
	}
	records[1].Observe("provider rejected the employee id format")

	repo := repository.NewOutcomeBulkRepository(pool)
	copied, err := repo.SaveOutcomes(ctx, jobID, "20240315_103000", records)
	if err != nil {
		t.Fatalf("save outcomes failed: %v", err)
	}
	if copied != 2 {
		t.Fatalf("copied %d rows, want 2", copied)
	}

	var failedReason string
	err = pool.QueryRow(ctx,
		"SELECT directory_reason FROM record_outcomes WHERE identification = $1", "100200301",
	).Scan(&failedReason)
	if err != nil {
		t.Fatalf("query outcome: %v", err)
	}
	if failedReason != "employeeId rejected" {
		t.Fatalf("unexpected reason: %q", failedReason)
	}
}

func TestOutcomeBulkRepositoryRejectsOpenRecordsIntegration(t *testing.T) {
	pool := openTestPool(t)

	rec, err := domain.NewUserRecord("Diana", "Torres", "100200302", "C.C", "diana@example.com", "", "student")
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	repo := repository.NewOutcomeBulkRepository(pool)
	if _, err := repo.SaveOutcomes(context.Background(), "job", "run", []*domain.UserRecord{rec}); err == nil {
		t.Fatal("expected open record to be rejected")
	}
}
