// Package emailgen derives unique institutional email addresses for new
// accounts and recognizes people already present in the directory by their
// normalized full name.
package emailgen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// numeric suffixes stop here; past this the input data is wrong
const maxNumericSuffix = 9999

var (
	ErrExhausted      = errors.New("could not derive a unique institutional email")
	ErrUnmappableName = errors.New("name has no letters that map to an address")
)

// DirectoryUser is the slice of directory state the generator needs: an
// address and the display name it belongs to.
type DirectoryUser struct {
	Email       string
	DisplayName string
}

// Generator produces addresses of the form given.surname@domain, resolving
// collisions first with letters of the second surname, then with a numeric
// suffix. Uniqueness is checked against both the directory snapshot and the
// addresses already minted in the current batch.
type Generator struct {
	domain    string
	taken     map[string]struct{}
	byName    map[string]string
	generated map[string]struct{}
}

func New(domain string) *Generator {
	return &Generator{
		domain:    strings.ToLower(strings.TrimSpace(domain)),
		taken:     make(map[string]struct{}),
		byName:    make(map[string]string),
		generated: make(map[string]struct{}),
	}
}

// LoadExisting seeds the generator with the directory's current users.
func (g *Generator) LoadExisting(users []DirectoryUser) {
	for _, u := range users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			continue
		}
		g.taken[email] = struct{}{}
		if key := nameKey(u.DisplayName); key != "" {
			g.byName[key] = email
		}
	}
}

// LookupByName returns the address already registered for this person, if
// the directory holds one under the same (order-insensitive) full name.
func (g *Generator) LookupByName(givenName, familyName string) (string, bool) {
	email, ok := g.byName[nameKey(givenName+" "+familyName)]
	return email, ok
}

// Generate derives a fresh unique address from the name components. Both the
// given name and the first surname must reduce to at least one ASCII letter;
// a name written entirely in a non-Latin script cannot yield an address here.
func (g *Generator) Generate(firstName, firstSurname, secondSurname string) (string, error) {
	given, surname := asciiToken(firstName), asciiToken(firstSurname)
	if given == "" || surname == "" {
		return "", fmt.Errorf("%w: %q %q", ErrUnmappableName, firstName, firstSurname)
	}
	base := given + "." + surname

	if email := g.claim(base); email != "" {
		return email, nil
	}

	for _, r := range asciiToken(secondSurname) {
		base += string(r)
		if email := g.claim(base); email != "" {
			return email, nil
		}
	}

	for n := 1; n <= maxNumericSuffix; n++ {
		if email := g.claim(fmt.Sprintf("%s%d", base, n)); email != "" {
			return email, nil
		}
	}

	return "", fmt.Errorf("%w: %s.%s@%s", ErrExhausted, firstName, firstSurname, g.domain)
}

func (g *Generator) claim(local string) string {
	email := local + "@" + g.domain
	if _, exists := g.taken[email]; exists {
		return ""
	}
	if _, minted := g.generated[email]; minted {
		return ""
	}
	g.generated[email] = struct{}{}
	return email
}

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// asciiToken lowercases, strips diacritics and drops anything that is not an
// ASCII letter, so "Muñoz-Peña" becomes "munozpena".
func asciiToken(s string) string {
	stripped, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(stripped) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nameKey normalizes a full name for order-insensitive comparison: lowercase,
// no diacritics, words sorted alphabetically.
func nameKey(fullName string) string {
	stripped, _, err := transform.String(stripDiacritics, fullName)
	if err != nil {
		stripped = fullName
	}
	words := strings.Fields(strings.ToLower(stripped))
	if len(words) == 0 {
		return ""
	}
	sort.Strings(words)
	return strings.Join(words, " ")
}
