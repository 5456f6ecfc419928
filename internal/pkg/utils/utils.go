package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatNumber adds comma separators to a number.
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var result strings.Builder
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	if neg {
		return "-" + result.String()
	}
	return result.String()
}

// FormatAmount renders a money amount with separators, keeping cents only
// when there are any: 1000000 -> "1,000,000", 12.5 -> "12.50".
func FormatAmount(d decimal.Decimal) string {
	whole := FormatNumber(d.Truncate(0).IntPart())
	frac := d.Sub(d.Truncate(0)).Abs()
	if frac.IsZero() {
		return whole
	}
	cents := frac.StringFixed(2)[1:] // ".50"
	if d.IsNegative() && whole == "0" {
		whole = "-0"
	}
	return whole + cents
}

// BodyHash returns the hex SHA-256 of a request body, used to correlate logs
// without storing secrets.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ShortHash is the first 12 characters of BodyHash.
func ShortHash(body []byte) string {
	return BodyHash(body)[:12]
}

// Age renders how long ago t was, in the largest whole unit.
func Age(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours", int(diff.Hours()))
	default:
		return fmt.Sprintf("%d days", int(diff.Hours()/24))
	}
}
