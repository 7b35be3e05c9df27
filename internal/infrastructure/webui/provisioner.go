// Package webui drives the second account platform, which exposes no API:
// outcomes are inferred from where the browser lands after submitting the
// creation form.
package webui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

// form and login selectors of the target platform
const (
	selLoginUser   = "#username_val"
	selLoginPass   = "#password"
	selLoginTerms  = "#tyc"
	selLoginButton = "#btn-login"

	selForm           = "#form"
	selUsername       = "#id_username"
	selIdentification = "#id_identification_id"
	selDocumentType   = "#id_type_document"
	selFirstName      = "#id_first_name"
	selLastName       = "#id_last_name"
	idBirthDate       = "id_birth_date"
	selEmail          = "#id_email"
	selPassword       = "#id_password_field"
	selSubmit         = "#enviar"
	selErrorBanner    = ".alert-danger"

	selRolePicker = ".select2-selection--multiple"
	selRoleSearch = ".select2-search__field"
	selRoleOption = ".select2-results__option"
	selSaveButton = `button[name="enviar"]`
)

type Config struct {
	LoginURL string
	FormURL  string
	Username string
	Password string

	// SuccessURLPrefix is the expected post-submit location; empty accepts
	// any location change as success.
	SuccessURLPrefix string

	// DefaultAccountPassword and DefaultBirthDate are the fixed values the
	// platform requires on every created account.
	DefaultAccountPassword string
	DefaultBirthDate       string

	ScreenshotDir string

	// SubmitWait is how long to watch for a location change before reading
	// the unchanged page as an existing account.
	SubmitWait time.Duration
}

// Provisioner implements the web-platform port on top of a PageDriver.
type Provisioner struct {
	driver   PageDriver
	cfg      Config
	classify Classifier
	log      *zap.Logger
	now      func() time.Time
}

func NewProvisioner(driver PageDriver, cfg Config, log *zap.Logger) *Provisioner {
	if cfg.SubmitWait <= 0 {
		cfg.SubmitWait = 5 * time.Second
	}
	if cfg.DefaultBirthDate == "" {
		cfg.DefaultBirthDate = "1990-01-01"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{
		driver:   driver,
		cfg:      cfg,
		classify: Classify,
		log:      log,
		now:      time.Now,
	}
}

// WithClassifier swaps the outcome inference rule, for simulation in tests.
func (p *Provisioner) WithClassifier(c Classifier) *Provisioner {
	p.classify = c
	return p
}

// Login authenticates the batch session. The platform bounces a failed login
// back to a login URL, which is the only failure signal it gives.
func (p *Provisioner) Login(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"navigate", func() error { return p.driver.Navigate(ctx, p.cfg.LoginURL) }},
		{"wait for login form", func() error { return p.driver.WaitVisible(ctx, selLoginUser) }},
		{"fill username", func() error { return p.driver.Fill(ctx, selLoginUser, p.cfg.Username) }},
		{"fill password", func() error { return p.driver.Fill(ctx, selLoginPass, p.cfg.Password) }},
		{"accept terms", func() error { return p.driver.Check(ctx, selLoginTerms) }},
		{"submit", func() error { return p.driver.Click(ctx, selLoginButton) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	if _, _, err := p.driver.WaitLocationChange(ctx, p.cfg.LoginURL, p.cfg.SubmitWait); err != nil {
		return fmt.Errorf("wait for redirect: %w", err)
	}
	loc, err := p.driver.Location(ctx)
	if err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if !loginSucceeded(loc) {
		return fmt.Errorf("still on a login page: %s", loc)
	}

	p.log.Info("web platform session authenticated")
	return nil
}

// Ensure submits the creation form for one record and infers the outcome from
// the resulting page location. Every terminal outcome carries a screenshot
// reference keyed by identification and timestamp.
func (p *Provisioner) Ensure(ctx context.Context, rec domain.UserRecord) domain.WebResult {
	log := p.log.With(zap.String("identification", rec.Identification))

	// role and document mappings are preconditions; fail before touching the
	// form rather than defaulting
	role, err := roleFor(rec.Affiliation)
	if err != nil {
		return domain.WebResult{Outcome: domain.Failed(err.Error())}
	}
	docValue, err := documentValueFor(rec.DocumentType)
	if err != nil {
		return domain.WebResult{Outcome: domain.Failed(err.Error())}
	}

	before, err := p.fillForm(ctx, rec, docValue)
	if err != nil {
		return p.failWithShot(ctx, rec, log, fmt.Sprintf("creation form: %v", err))
	}

	if err := p.driver.ClickByScript(ctx, selSubmit); err != nil {
		return p.failWithShot(ctx, rec, log, fmt.Sprintf("submit: %v", err))
	}

	after, _, err := p.driver.WaitLocationChange(ctx, before, p.cfg.SubmitWait)
	if err != nil {
		return p.failWithShot(ctx, rec, log, fmt.Sprintf("wait after submit: %v", err))
	}

	errorShown, err := p.driver.IsVisible(ctx, selErrorBanner)
	if err != nil {
		errorShown = false
	}

	outcome := p.classify(before, after, p.cfg.SuccessURLPrefix, errorShown)
	switch outcome.Status {
	case domain.StatusAlreadyExisted:
		log.Info("form location unchanged, account inferred to exist")
		return domain.WebResult{Outcome: outcome, Screenshot: p.screenshot(ctx, rec, log)}
	case domain.StatusFailed:
		log.Warn("form submission failed", zap.String("reason", outcome.Reason))
		return domain.WebResult{Outcome: outcome, Screenshot: p.screenshot(ctx, rec, log)}
	}

	// the account now exists; assign its role and save
	if err := p.assignRole(ctx, role); err != nil {
		return p.failWithShot(ctx, rec, log, fmt.Sprintf("role assignment: %v", err))
	}

	log.Info("web account created", zap.String("role", role))
	return domain.WebResult{Outcome: domain.Created(), Screenshot: p.screenshot(ctx, rec, log)}
}

func (p *Provisioner) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

func (p *Provisioner) fillForm(ctx context.Context, rec domain.UserRecord, docValue string) (string, error) {
	if err := p.driver.Navigate(ctx, p.cfg.FormURL); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := p.driver.WaitVisible(ctx, selForm); err != nil {
		return "", fmt.Errorf("wait for form: %w", err)
	}
	before, err := p.driver.Location(ctx)
	if err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}

	fills := []struct {
		sel, value string
	}{
		{selUsername, rec.Identification},
		{selIdentification, rec.Identification},
		{selFirstName, rec.GivenName},
		{selLastName, rec.FamilyName},
		{selEmail, rec.InstitutionalEmail},
		{selPassword, p.cfg.DefaultAccountPassword},
	}
	for _, f := range fills {
		if err := p.driver.Fill(ctx, f.sel, f.value); err != nil {
			return "", fmt.Errorf("fill %s: %w", f.sel, err)
		}
	}
	if err := p.driver.SelectOption(ctx, selDocumentType, docValue); err != nil {
		return "", fmt.Errorf("select document type: %w", err)
	}
	if err := p.driver.SetValueByScript(ctx, idBirthDate, p.cfg.DefaultBirthDate); err != nil {
		return "", fmt.Errorf("set birth date: %w", err)
	}

	return before, nil
}

func (p *Provisioner) assignRole(ctx context.Context, role string) error {
	if err := p.driver.Click(ctx, selRolePicker); err != nil {
		return fmt.Errorf("open role picker: %w", err)
	}
	if err := p.driver.Fill(ctx, selRoleSearch, role); err != nil {
		return fmt.Errorf("search role: %w", err)
	}
	if err := p.driver.Click(ctx, selRoleOption); err != nil {
		return fmt.Errorf("pick role: %w", err)
	}
	if err := p.driver.ClickByScript(ctx, selSaveButton); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func (p *Provisioner) failWithShot(ctx context.Context, rec domain.UserRecord, log *zap.Logger, reason string) domain.WebResult {
	log.Warn("web provisioning error", zap.String("reason", reason))
	return domain.WebResult{Outcome: domain.Failed(reason), Screenshot: p.screenshot(ctx, rec, log)}
}

// screenshot captures the audit snapshot for a terminal outcome. A capture
// failure is logged but never changes the outcome.
func (p *Provisioner) screenshot(ctx context.Context, rec domain.UserRecord, log *zap.Logger) string {
	if p.cfg.ScreenshotDir == "" {
		return ""
	}
	name := fmt.Sprintf("%s_%s.png", rec.Identification, p.now().Format("20060102_150405"))
	path := filepath.Join(p.cfg.ScreenshotDir, name)
	if err := p.driver.Screenshot(ctx, path); err != nil {
		log.Warn("screenshot capture failed", zap.Error(err))
		return ""
	}
	return path
}
