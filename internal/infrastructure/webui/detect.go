package webui

import (
	"strings"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

// Classifier turns the only signals the web platform gives us (where the
// browser ended up and whether an error banner is showing) into an outcome.
// Injectable so orchestration tests can simulate the platform without a
// browser.
type Classifier func(before, after, successPrefix string, errorShown bool) domain.Outcome

// Classify is the production inference rule. The platform returns the user to
// the same page when the account already exists, so an unchanged location is
// read as AlreadyExisted. Only a move to the expected success location counts
// as Created; any other landing page is a failure, never an optimistic
// Created.
func Classify(before, after, successPrefix string, errorShown bool) domain.Outcome {
	switch {
	case errorShown:
		return domain.Failed("platform displayed a form error")
	case after == "" || after == before:
		return domain.AlreadyExisted()
	case successPrefix == "" || strings.HasPrefix(after, successPrefix):
		return domain.Created()
	default:
		return domain.Failed("form submission landed on unexpected location " + after)
	}
}

// loginSucceeded mirrors the platform's behavior of bouncing failed logins
// back to a login URL.
func loginSucceeded(location string) bool {
	return location != "" && !strings.Contains(strings.ToLower(location), "login")
}
