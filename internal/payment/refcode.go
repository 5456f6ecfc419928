package payment

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	// ReferencePrefix starts every payment reference code.
	ReferencePrefix = "PM"
	// ReferenceLength is the full length of a reference code, prefix included.
	ReferenceLength = len(ReferencePrefix) + referenceRandomLen

	referenceRandomLen = 8
	referenceAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var referencePattern = regexp.MustCompile(`^PM[A-Z0-9]{8}$`)

// GenerateReferenceCode returns a new code such as "PM7K2Q9XZA". Uniqueness is
// not checked here; the payments table enforces it.
func GenerateReferenceCode() (string, error) {
	var b strings.Builder
	b.Grow(ReferenceLength)
	b.WriteString(ReferencePrefix)

	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < referenceRandomLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reference code entropy: %w", err)
		}
		b.WriteByte(referenceAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// IsReferenceCode reports whether s is a well-formed reference code.
func IsReferenceCode(s string) bool {
	return referencePattern.MatchString(s)
}

// ExtractReferenceCode finds the reference code inside a bank transfer memo.
// The code may be glued to surrounding text and is matched case-insensitively.
// Every window of the memo that looks like a code is a candidate, overlapping
// ones included; it succeeds only when all candidates are the same code.
func ExtractReferenceCode(memo string) (string, bool) {
	upper := strings.ToUpper(memo)
	code := ""
	for i := 0; i+ReferenceLength <= len(upper); i++ {
		candidate := upper[i : i+ReferenceLength]
		if !referencePattern.MatchString(candidate) {
			continue
		}
		if code != "" && candidate != code {
			return "", false
		}
		code = candidate
	}
	return code, code != ""
}
