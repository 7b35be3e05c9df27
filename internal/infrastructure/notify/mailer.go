// Package notify delivers the welcome message that hands each created account
// its credentials.
package notify

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

//go:embed welcome.html
var welcomeHTML string

var welcomeTmpl = template.Must(template.New("welcome").Parse(welcomeHTML))

// MailAPI is the slice of the directory client the mailer needs.
type MailAPI interface {
	SendMail(ctx context.Context, from, to, subject, bodyHTML string) error
}

type Config struct {
	// From is the mailbox the welcome message is sent from.
	From    string
	Subject string
	// WebPassword is the fixed initial password of the web platform, included
	// so the message covers both accounts.
	WebPassword string
}

// Mailer sends the welcome message to the record's personal address. It is
// only invoked for records whose directory account was created in this run;
// existing accounts already hold their credentials.
type Mailer struct {
	api MailAPI
	cfg Config
	log *zap.Logger
}

func NewMailer(api MailAPI, cfg Config, log *zap.Logger) *Mailer {
	if cfg.Subject == "" {
		cfg.Subject = "Your institutional account is ready"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{api: api, cfg: cfg, log: log}
}

type welcomeData struct {
	FullName           string
	Identification     string
	InstitutionalEmail string
	Credential         string
	WebPassword        string
}

func (m *Mailer) Send(ctx context.Context, rec domain.UserRecord) domain.Outcome {
	body, err := m.render(rec)
	if err != nil {
		return domain.Failed(fmt.Sprintf("render welcome message: %v", err))
	}

	if err := m.api.SendMail(ctx, m.cfg.From, rec.PersonalEmail, m.cfg.Subject, body); err != nil {
		m.log.Warn("welcome mail rejected",
			zap.String("identification", rec.Identification),
			zap.Error(err))
		return domain.Failed(err.Error())
	}

	m.log.Info("welcome mail accepted",
		zap.String("identification", rec.Identification),
		zap.String("to", rec.PersonalEmail))
	return domain.Created()
}

func (m *Mailer) render(rec domain.UserRecord) (string, error) {
	var buf bytes.Buffer
	err := welcomeTmpl.Execute(&buf, welcomeData{
		FullName:           rec.FullName(),
		Identification:     rec.Identification,
		InstitutionalEmail: rec.InstitutionalEmail,
		Credential:         rec.Credential,
		WebPassword:        m.cfg.WebPassword,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
