package provisioning

import (
	"net/mail"
	"strings"
)

// DocumentType is the closed set of identity-document codes accepted from the
// intake file.
type DocumentType string

const (
	DocumentCC DocumentType = "C.C"
	DocumentCE DocumentType = "C.E"
)

var documentTypeAliases = map[string]DocumentType{
	"CC":   DocumentCC,
	"C.C":  DocumentCC,
	"C.C.": DocumentCC,
	"CE":   DocumentCE,
	"C.E":  DocumentCE,
	"C.E.": DocumentCE,
}

// ParseDocumentType normalizes common spellings (cc, C.C., ce, ...) into the
// closed set. Anything else is ErrUnknownDocumentType, never a default.
func ParseDocumentType(raw string) (DocumentType, error) {
	dt, ok := documentTypeAliases[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", ErrUnknownDocumentType
	}
	return dt, nil
}

// Affiliation is the closed set of vinculation types a record may carry. It
// drives both the directory group and the web-platform role assignment.
type Affiliation string

const (
	AffiliationStudent Affiliation = "Student"
	AffiliationFaculty Affiliation = "Faculty"
)

// ParseAffiliation matches case-insensitively against the closed set. An
// unknown value is a precondition error for the caller to record, not a
// silent default.
func ParseAffiliation(raw string) (Affiliation, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student":
		return AffiliationStudent, nil
	case "faculty":
		return AffiliationFaculty, nil
	}
	return "", ErrUnknownAffiliation
}

// UserRecord is the unit of work and of reporting: the identity of one person
// plus the mutable outcome state attached while the batch runs. Records are
// built once by intake, written only by the orchestrator, and read-only once
// the batch closes.
type UserRecord struct {
	GivenName          string
	FamilyName         string
	Identification     string
	DocumentType       DocumentType
	PersonalEmail      string
	InstitutionalEmail string
	Affiliation        Affiliation
	Program            string

	Statuses StatusSet

	// Credential is present only when the directory slot is Created.
	Credential string

	// Observations collects human-readable audit notes that are not errors
	// (for example a directory/web existence mismatch).
	Observations []string

	// Screenshots maps a platform to its point-in-time snapshot reference.
	Screenshots map[Platform]string
}

// NewUserRecord validates and normalizes the identity fields. Names are
// title-cased with surname connectives kept lowercase, the identification must
// be digits only, and document type and affiliation must resolve to their
// closed sets.
func NewUserRecord(givenName, familyName, identification, documentType, personalEmail, program, affiliation string) (*UserRecord, error) {
	givenName = titleCaseName(givenName)
	familyName = titleCaseName(familyName)
	if givenName == "" || familyName == "" {
		return nil, ErrMissingName
	}

	identification = strings.TrimSpace(identification)
	if identification == "" || !isDigits(identification) {
		return nil, ErrInvalidIdentification
	}

	if _, err := mail.ParseAddress(personalEmail); err != nil {
		return nil, ErrInvalidPersonalEmail
	}

	dt, err := ParseDocumentType(documentType)
	if err != nil {
		return nil, err
	}

	aff, err := ParseAffiliation(affiliation)
	if err != nil {
		return nil, err
	}

	return &UserRecord{
		GivenName:      givenName,
		FamilyName:     familyName,
		Identification: identification,
		DocumentType:   dt,
		PersonalEmail:  strings.TrimSpace(personalEmail),
		Affiliation:    aff,
		Program:        strings.TrimSpace(program),
		Screenshots:    make(map[Platform]string),
	}, nil
}

// FullName is the display form used by the directory and in report rows.
func (r *UserRecord) FullName() string {
	return r.GivenName + " " + r.FamilyName
}

// Observe appends an audit note to the record.
func (r *UserRecord) Observe(note string) {
	if note == "" {
		return
	}
	r.Observations = append(r.Observations, note)
}

// surname connectives that stay lowercase unless they lead the name
var lowercaseConnectives = map[string]bool{
	"De": true, "Del": true, "La": true, "Los": true, "Las": true, "Y": true,
}

func titleCaseName(raw string) string {
	words := strings.Fields(strings.TrimSpace(raw))
	for i, w := range words {
		w = titleWord(w)
		if i > 0 && lowercaseConnectives[w] {
			w = strings.ToLower(w)
		}
		words[i] = w
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
