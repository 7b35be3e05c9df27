package provisioning_test

import (
	"errors"
	"testing"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

func TestStatusSetSingleWrite(t *testing.T) {
	t.Parallel()

	var s domain.StatusSet
	if err := s.SetDirectory(domain.Created()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	err := s.SetDirectory(domain.Failed("x"))
	if !errors.Is(err, domain.ErrSlotAlreadySet) {
		t.Fatalf("expected ErrSlotAlreadySet, got %v", err)
	}

	got, ok := s.Get(domain.PlatformDirectory)
	if !ok || got.Status != domain.StatusCreated {
		t.Fatalf("second write must not overwrite: %+v", got)
	}
}

func TestStatusSetNotApplicableOnlyForNotification(t *testing.T) {
	t.Parallel()

	var s domain.StatusSet
	na := domain.Outcome{Status: domain.StatusNotApplicable}

	if err := s.SetDirectory(na); !errors.Is(err, domain.ErrNotApplicableSlot) {
		t.Fatalf("directory slot accepted not_applicable: %v", err)
	}
	if err := s.SetWeb(na); !errors.Is(err, domain.ErrNotApplicableSlot) {
		t.Fatalf("web slot accepted not_applicable: %v", err)
	}
}

func TestStatusSetNotificationEligibility(t *testing.T) {
	t.Parallel()

	// directory AlreadyExisted: only not_applicable is legal
	var existed domain.StatusSet
	if err := existed.SetDirectory(domain.AlreadyExisted()); err != nil {
		t.Fatal(err)
	}
	if err := existed.SetNotification(domain.Created()); !errors.Is(err, domain.ErrNotificationNotEligible) {
		t.Fatalf("sent accepted without a created directory account: %v", err)
	}
	if err := existed.SetNotification(domain.Outcome{Status: domain.StatusNotApplicable}); err != nil {
		t.Fatalf("not_applicable rejected: %v", err)
	}

	// directory Created: not_applicable is illegal, sent/failed are legal
	var created domain.StatusSet
	if err := created.SetDirectory(domain.Created()); err != nil {
		t.Fatal(err)
	}
	if err := created.SetNotification(domain.Outcome{Status: domain.StatusNotApplicable}); !errors.Is(err, domain.ErrNotificationApplicable) {
		t.Fatalf("not_applicable accepted after directory creation: %v", err)
	}
	if err := created.SetNotification(domain.Created()); err != nil {
		t.Fatalf("sent rejected: %v", err)
	}

	// notification before directory is a sequencing bug
	var out domain.StatusSet
	if err := out.SetNotification(domain.Created()); !errors.Is(err, domain.ErrNotificationBeforeDirectory) {
		t.Fatalf("notification accepted before directory: %v", err)
	}
}

func TestFailPendingFillsEverySlot(t *testing.T) {
	t.Parallel()

	// nothing ran yet: cancellation fails directory and web, notification
	// has nothing to notify
	var fresh domain.StatusSet
	fresh.FailPending("cancelled")
	if !fresh.Complete() {
		t.Fatal("expected every slot set")
	}
	dir, _ := fresh.Get(domain.PlatformDirectory)
	if dir.Status != domain.StatusFailed || dir.Reason != "cancelled" {
		t.Fatalf("unexpected directory outcome: %+v", dir)
	}
	notif, _ := fresh.Get(domain.PlatformNotification)
	if notif.Status != domain.StatusNotApplicable {
		t.Fatalf("unexpected notification outcome: %+v", notif)
	}

	// directory already created: the pending notification becomes a failure
	var half domain.StatusSet
	if err := half.SetDirectory(domain.Created()); err != nil {
		t.Fatal(err)
	}
	half.FailPending("cancelled")
	notif, _ = half.Get(domain.PlatformNotification)
	if notif.Status != domain.StatusFailed || notif.Reason != "cancelled" {
		t.Fatalf("unexpected notification outcome: %+v", notif)
	}
	web, _ := half.Get(domain.PlatformWeb)
	if web.Status != domain.StatusFailed {
		t.Fatalf("unexpected web outcome: %+v", web)
	}
}
