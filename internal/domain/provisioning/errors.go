package provisioning

import "errors"

var (
	ErrSlotAlreadySet              = errors.New("status slot already set")
	ErrNotApplicableSlot           = errors.New("not_applicable is only legal on the notification slot")
	ErrNotificationBeforeDirectory = errors.New("notification slot set before directory slot")
	ErrNotificationApplicable      = errors.New("notification slot cannot be not_applicable after a directory creation")
	ErrNotificationNotEligible     = errors.New("notification requires a created directory account")

	ErrInvalidIdentification = errors.New("identification must contain only digits")
	ErrInvalidPersonalEmail  = errors.New("invalid personal email")
	ErrUnknownDocumentType   = errors.New("unknown document type")
	ErrUnknownAffiliation    = errors.New("unknown affiliation type")
	ErrMissingName           = errors.New("missing given or family name")

	ErrIncompleteStatuses = errors.New("record has unset status slots")

	ErrJobNotFound = errors.New("batch job not found")
)
