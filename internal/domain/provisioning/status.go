package provisioning

import "fmt"

// Platform identifies one of the account systems a record passes through.
type Platform string

const (
	PlatformDirectory    Platform = "directory"
	PlatformWeb          Platform = "web"
	PlatformNotification Platform = "notification"
)

// Platforms lists every slot in the order records are driven through them.
var Platforms = []Platform{PlatformDirectory, PlatformWeb, PlatformNotification}

// PlatformStatus is the closed set of terminal states a slot can hold.
// AlreadyExisted is a successful idempotent no-op, never an error.
// For the notification platform, Created means the welcome mail was sent.
type PlatformStatus string

const (
	StatusCreated        PlatformStatus = "created"
	StatusAlreadyExisted PlatformStatus = "already_existed"
	StatusFailed         PlatformStatus = "failed"
	StatusNotApplicable  PlatformStatus = "not_applicable"
)

// Outcome is the result of one provisioning step. Reason carries the
// provider's diagnostic text verbatim and is only meaningful for Failed.
type Outcome struct {
	Status PlatformStatus
	Reason string
}

func Created() Outcome {
	return Outcome{Status: StatusCreated}
}

func AlreadyExisted() Outcome {
	return Outcome{Status: StatusAlreadyExisted}
}

func Failed(reason string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason}
}

// StatusSet holds the three per-platform slots of one record. Each slot is
// written at most once, and NotApplicable is only constructible on the
// notification slot while the directory slot is not Created. The orchestrator
// is the only writer.
type StatusSet struct {
	directory    Outcome
	web          Outcome
	notification Outcome

	directorySet    bool
	webSet          bool
	notificationSet bool
}

func (s *StatusSet) SetDirectory(o Outcome) error {
	if s.directorySet {
		return fmt.Errorf("%w: directory", ErrSlotAlreadySet)
	}
	if o.Status == StatusNotApplicable {
		return fmt.Errorf("%w: directory", ErrNotApplicableSlot)
	}
	s.directory = o
	s.directorySet = true
	return nil
}

func (s *StatusSet) SetWeb(o Outcome) error {
	if s.webSet {
		return fmt.Errorf("%w: web", ErrSlotAlreadySet)
	}
	if o.Status == StatusNotApplicable {
		return fmt.Errorf("%w: web", ErrNotApplicableSlot)
	}
	s.web = o
	s.webSet = true
	return nil
}

func (s *StatusSet) SetNotification(o Outcome) error {
	if s.notificationSet {
		return fmt.Errorf("%w: notification", ErrSlotAlreadySet)
	}
	if !s.directorySet {
		return ErrNotificationBeforeDirectory
	}
	if o.Status == StatusNotApplicable {
		if s.directory.Status == StatusCreated {
			return ErrNotificationApplicable
		}
	} else if s.directory.Status != StatusCreated {
		return ErrNotificationNotEligible
	}
	s.notification = o
	s.notificationSet = true
	return nil
}

// Get returns the slot outcome and whether it has been written.
func (s *StatusSet) Get(p Platform) (Outcome, bool) {
	switch p {
	case PlatformDirectory:
		return s.directory, s.directorySet
	case PlatformWeb:
		return s.web, s.webSet
	case PlatformNotification:
		return s.notification, s.notificationSet
	}
	return Outcome{}, false
}

// Complete reports whether every slot has been written.
func (s *StatusSet) Complete() bool {
	return s.directorySet && s.webSet && s.notificationSet
}

// FailPending fills every unset slot so a record never ends a batch with a
// hole in its status set. Unset directory and web slots become Failed(reason);
// the notification slot becomes Failed(reason) only when a directory creation
// had already happened, otherwise NotApplicable.
func (s *StatusSet) FailPending(reason string) {
	if !s.directorySet {
		s.directory = Failed(reason)
		s.directorySet = true
	}
	if !s.webSet {
		s.web = Failed(reason)
		s.webSet = true
	}
	if !s.notificationSet {
		if s.directory.Status == StatusCreated {
			s.notification = Failed(reason)
		} else {
			s.notification = Outcome{Status: StatusNotApplicable}
		}
		s.notificationSet = true
	}
}
