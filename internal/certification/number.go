package certification

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
)

var numberPattern = regexp.MustCompile(`^FFA-\d{4}-\d{6}$`)

var sixDigits = big.NewInt(1_000_000)

// NewNumber returns FFA-<year>-<6 random digits> using r as the entropy
// source, normally crypto/rand.Reader.
func NewNumber(r io.Reader, year int) (string, error) {
	n, err := rand.Int(r, sixDigits)
	if err != nil {
		return "", fmt.Errorf("generate certificate number: %w", err)
	}
	return fmt.Sprintf("FFA-%04d-%06d", year, n.Int64()), nil
}

// ValidNumber reports whether s has the certificate number format.
func ValidNumber(s string) bool {
	return numberPattern.MatchString(s)
}
