// Package credential generates the temporary passwords handed to newly
// created directory accounts. Values satisfy the directory's password policy
// and avoid glyphs that are easy to mistranscribe (0/O, 1/l/I).
package credential

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	upper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lower   = "abcdefghjkmnpqrstuvwxyz"
	digits  = "23456789"
	symbols = "@#$%&*+=?"

	// MinLength is the directory policy floor; DefaultLength is what batches
	// use unless configured otherwise.
	MinLength     = 8
	DefaultLength = 12
)

var ErrTooShort = errors.New("credential length below policy minimum")

var alphabet = upper + lower + digits + symbols

// Generate returns a random credential of the given length containing at
// least one character from each class.
func Generate(length int) (string, error) {
	if length < MinLength {
		return "", ErrTooShort
	}

	for {
		var b strings.Builder
		b.Grow(length)
		for i := 0; i < length; i++ {
			idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
			if err != nil {
				return "", err
			}
			b.WriteByte(alphabet[idx.Int64()])
		}
		candidate := b.String()
		if strings.ContainsAny(candidate, upper) &&
			strings.ContainsAny(candidate, lower) &&
			strings.ContainsAny(candidate, digits) &&
			strings.ContainsAny(candidate, symbols) {
			return candidate, nil
		}
	}
}
