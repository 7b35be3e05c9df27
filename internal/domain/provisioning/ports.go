package provisioning

import "context"

// DirectoryResult is what the API-backed directory reports for one record.
// Credential is set only alongside a Created outcome.
type DirectoryResult struct {
	Outcome    Outcome
	Credential string
	// Observations carries audit notes that do not change the outcome, such
	// as a created account left without its group.
	Observations []string
}

// DirectoryProvisioner creates or detects accounts in the identity directory.
// Existence is always determined by an explicit query on the identification
// number, never inferred.
type DirectoryProvisioner interface {
	Ensure(ctx context.Context, rec UserRecord) DirectoryResult
}

// WebResult is what the browser-driven platform reports for one record.
// Screenshot references the point-in-time snapshot captured for the terminal
// outcome.
type WebResult struct {
	Outcome    Outcome
	Screenshot string
}

// WebProvisioner drives the no-API web platform through its UI. Login is
// batch-scoped and mandatory before any Ensure; a login failure is systemic.
// Close must be called on every exit path so the authenticated browser
// context is never leaked.
type WebProvisioner interface {
	Login(ctx context.Context) error
	Ensure(ctx context.Context, rec UserRecord) WebResult
	Close(ctx context.Context) error
}

// NotificationSender delivers the welcome message carrying the generated
// credential. The orchestrator only calls it for records whose directory slot
// is Created; a failure here never compensates the directory creation.
type NotificationSender interface {
	Send(ctx context.Context, rec UserRecord) Outcome
}

// BatchJobRepository is the queue the provisioning worker drains.
type BatchJobRepository interface {
	Enqueue(ctx context.Context, sourcePath string) (string, error)
}
