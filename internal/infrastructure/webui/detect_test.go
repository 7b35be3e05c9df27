package webui

import (
	"testing"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name          string
		before, after string
		successPrefix string
		errorShown    bool
		wantStatus    domain.PlatformStatus
	}{
		{
			name:       "error banner wins over any location",
			before:     "https://app.example/create",
			after:      "https://app.example/users/42",
			errorShown: true,
			wantStatus: domain.StatusFailed,
		},
		{
			name:       "unchanged location means the account exists",
			before:     "https://app.example/create",
			after:      "https://app.example/create",
			wantStatus: domain.StatusAlreadyExisted,
		},
		{
			name:       "empty after is read the same as unchanged",
			before:     "https://app.example/create",
			after:      "",
			wantStatus: domain.StatusAlreadyExisted,
		},
		{
			name:          "move to success prefix is created",
			before:        "https://app.example/create",
			after:         "https://app.example/users/42",
			successPrefix: "https://app.example/users",
			wantStatus:    domain.StatusCreated,
		},
		{
			name:       "any change counts without a configured prefix",
			before:     "https://app.example/create",
			after:      "https://app.example/anywhere",
			wantStatus: domain.StatusCreated,
		},
		{
			name:          "unexpected landing page fails",
			before:        "https://app.example/create",
			after:         "https://app.example/error/500",
			successPrefix: "https://app.example/users",
			wantStatus:    domain.StatusFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.before, tc.after, tc.successPrefix, tc.errorShown)
			if got.Status != tc.wantStatus {
				t.Fatalf("status = %q, want %q (reason %q)", got.Status, tc.wantStatus, got.Reason)
			}
			if tc.wantStatus == domain.StatusFailed && got.Reason == "" {
				t.Fatal("failed outcome without a reason")
			}
		})
	}
}

func TestLoginSucceeded(t *testing.T) {
	if loginSucceeded("") {
		t.Error("empty location should not count as a login")
	}
	if loginSucceeded("https://app.example/Login?next=/home") {
		t.Error("a login URL means the credentials were rejected")
	}
	if !loginSucceeded("https://app.example/dashboard") {
		t.Error("landing off the login page is a successful login")
	}
}
