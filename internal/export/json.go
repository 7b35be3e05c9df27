package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

// JSONExporter writes the consolidated machine-readable artifact of a run.
// This is the reference export the row-capped renderers point their summary
// line at, so it always carries every record.
type JSONExporter struct {
	dir string
	log *zap.Logger
}

func NewJSONExporter(dir string, log *zap.Logger) *JSONExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &JSONExporter{dir: dir, log: log}
}

type jsonDocument struct {
	RunID       string                      `json:"run_id"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Report      domain.ReconciliationReport `json:"report"`
	Records     []jsonRecord                `json:"records"`
}

type jsonRecord struct {
	Identification     string                     `json:"identification"`
	FullName           string                     `json:"full_name"`
	InstitutionalEmail string                     `json:"institutional_email"`
	PersonalEmail      string                     `json:"personal_email"`
	Affiliation        string                     `json:"affiliation"`
	Program            string                     `json:"program,omitempty"`
	Credential         string                     `json:"credential,omitempty"`
	Platforms          map[string]jsonOutcome     `json:"platforms"`
	Observations       []string                   `json:"observations,omitempty"`
	Screenshots        map[domain.Platform]string `json:"screenshots,omitempty"`
}

type jsonOutcome struct {
	Status domain.PlatformStatus `json:"status"`
	Marker string                `json:"marker"`
	Reason string                `json:"reason,omitempty"`
}

func (e *JSONExporter) Export(_ context.Context, artifacts RunArtifacts) error {
	doc := jsonDocument{
		RunID:       artifacts.RunID,
		GeneratedAt: artifacts.GeneratedAt,
		Report:      artifacts.Report,
		Records:     make([]jsonRecord, 0, len(artifacts.Records)),
	}
	for _, rec := range artifacts.Records {
		jr := jsonRecord{
			Identification:     rec.Identification,
			FullName:           rec.FullName(),
			InstitutionalEmail: rec.InstitutionalEmail,
			PersonalEmail:      rec.PersonalEmail,
			Affiliation:        string(rec.Affiliation),
			Program:            rec.Program,
			Platforms:          make(map[string]jsonOutcome, len(domain.Platforms)),
			Observations:       rec.Observations,
			Screenshots:        rec.Screenshots,
		}
		// Credentials exist only for freshly created directory accounts.
		// This artifact is the only place the secret is persisted; callers
		// are responsible for protecting the file.
		if out, ok := rec.Statuses.Get(domain.PlatformDirectory); ok && out.Status == domain.StatusCreated {
			jr.Credential = rec.Credential
		}
		for _, p := range domain.Platforms {
			out, ok := rec.Statuses.Get(p)
			if !ok {
				continue
			}
			jr.Platforms[string(p)] = jsonOutcome{
				Status: out.Status,
				Marker: Marker(out.Status),
				Reason: out.Reason,
			}
		}
		doc.Records = append(doc.Records, jr)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.dir, FileName(artifacts.RunID))

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run artifact: %w", err)
	}

	e.log.Info("consolidated report written",
		zap.String("run_id", artifacts.RunID),
		zap.String("path", path),
		zap.Int("records", len(doc.Records)))
	return nil
}

// FileName is the artifact name for a run, shared so renderers can reference
// the export they are capped against.
func FileName(runID string) string {
	return "provisioning_" + runID + ".json"
}
