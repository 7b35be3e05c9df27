package webui

import (
	"fmt"

	domain "github.com/campuskit/provisioner/internal/domain/provisioning"
)

// documentSelectValues maps the document-type code to the value of the form's
// document select element.
var documentSelectValues = map[domain.DocumentType]string{
	domain.DocumentCC: "1",
	domain.DocumentCE: "2",
}

// platformRoles maps affiliation to the role option typed into the platform's
// role picker.
var platformRoles = map[domain.Affiliation]string{
	domain.AffiliationStudent: "Students",
	domain.AffiliationFaculty: "Faculty",
}

// roleFor resolves the platform role for an affiliation. Anything outside the
// closed set is a precondition error, never a silent default.
func roleFor(affiliation domain.Affiliation) (string, error) {
	role, ok := platformRoles[affiliation]
	if !ok {
		return "", fmt.Errorf("%w: %q has no platform role", domain.ErrUnknownAffiliation, affiliation)
	}
	return role, nil
}

func documentValueFor(dt domain.DocumentType) (string, error) {
	v, ok := documentSelectValues[dt]
	if !ok {
		return "", fmt.Errorf("%w: %q has no document select value", domain.ErrUnknownDocumentType, dt)
	}
	return v, nil
}
