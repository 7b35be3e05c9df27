package directory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/provisioner/internal/credential"
	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

const groupAssignAttempts = 3

type ProvisionerConfig struct {
	// Groups maps affiliation to the directory group a new account joins.
	Groups map[domain.Affiliation]string
	// CredentialLength for freshly minted passwords; defaults to the policy
	// default.
	CredentialLength int
	// PropagationWait is the pause between account creation and group
	// assignment, covering the directory's replication lag.
	PropagationWait time.Duration
	// RetryDelay between group-assignment attempts.
	RetryDelay time.Duration
}

// Provisioner implements the directory port: explicit existence check by
// identification, creation with a fresh credential, then group assignment.
type Provisioner struct {
	client *Client
	cfg    ProvisionerConfig
	log    *zap.Logger
}

func NewProvisioner(client *Client, cfg ProvisionerConfig, log *zap.Logger) *Provisioner {
	if cfg.CredentialLength == 0 {
		cfg.CredentialLength = credential.DefaultLength
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{client: client, cfg: cfg, log: log}
}

func (p *Provisioner) Ensure(ctx context.Context, rec domain.UserRecord) domain.DirectoryResult {
	log := p.log.With(zap.String("identification", rec.Identification))

	existing, err := p.client.FindByEmployeeID(ctx, rec.Identification)
	if err != nil {
		return domain.DirectoryResult{Outcome: domain.Failed(err.Error())}
	}
	if existing != nil {
		log.Debug("identification already registered", zap.String("email", existing.UserPrincipalName))
		return domain.DirectoryResult{Outcome: domain.AlreadyExisted()}
	}

	password, err := credential.Generate(p.cfg.CredentialLength)
	if err != nil {
		return domain.DirectoryResult{Outcome: domain.Failed("credential generation: " + err.Error())}
	}

	userID, err := p.client.CreateUser(ctx, rec.FullName(), rec.InstitutionalEmail, rec.Identification, password)
	if err != nil {
		// the provider's diagnostic text travels verbatim into the report
		return domain.DirectoryResult{Outcome: domain.Failed(err.Error())}
	}

	result := domain.DirectoryResult{Outcome: domain.Created(), Credential: password}

	groupName, ok := p.cfg.Groups[rec.Affiliation]
	if !ok || groupName == "" {
		result.Observations = append(result.Observations,
			fmt.Sprintf("no directory group configured for affiliation %s; account created without group", rec.Affiliation))
		return result
	}

	if note := p.assignGroup(ctx, userID, groupName, log); note != "" {
		// the account exists either way; a missing group never regresses the
		// Created outcome
		result.Observations = append(result.Observations, note)
	}
	return result
}

func (p *Provisioner) assignGroup(ctx context.Context, userID, groupName string, log *zap.Logger) string {
	if p.cfg.PropagationWait > 0 {
		if !sleepCtx(ctx, p.cfg.PropagationWait) {
			return fmt.Sprintf("group assignment to %q skipped: %v", groupName, ctx.Err())
		}
	}

	groupID, err := p.client.GroupID(ctx, groupName)
	if err != nil {
		log.Warn("group lookup failed", zap.String("group", groupName), zap.Error(err))
		return fmt.Sprintf("account created but group %q could not be resolved: %v", groupName, err)
	}

	var lastErr error
	for attempt := 1; attempt <= groupAssignAttempts; attempt++ {
		lastErr = p.client.AddGroupMember(ctx, groupID, userID)
		if lastErr == nil {
			log.Info("group assigned", zap.String("group", groupName), zap.Int("attempt", attempt))
			return ""
		}
		log.Warn("group assignment attempt failed",
			zap.String("group", groupName),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt < groupAssignAttempts && !sleepCtx(ctx, p.cfg.RetryDelay) {
			break
		}
	}

	return fmt.Sprintf("account created but not assigned to group %q after %d attempts: %v", groupName, groupAssignAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
