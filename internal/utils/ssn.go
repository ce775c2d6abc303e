package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSSN is returned when an SSN does not contain exactly nine digits.
var ErrInvalidSSN = errors.New("SSN must be exactly 9 digits")

// ValidateAndParseSSN strips every non-digit character from input and
// parses the remaining nine digits. "123-45-6789", "123 45 6789" and
// "123456789" all yield 123456789.
func ValidateAndParseSSN(input string) (int64, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 9 {
		return 0, ErrInvalidSSN
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ErrInvalidSSN
	}
	return n, nil
}

// FormatSSN renders n as DDD-DD-DDDD, zero padded to nine digits.
func FormatSSN(n int64) string {
	s := fmt.Sprintf("%09d", n)
	return s[0:3] + "-" + s[3:5] + "-" + s[5:9]
}

// MaskSSN renders n as XXX-XX-DDDD keeping only the last four digits.
func MaskSSN(n int64) string {
	return "XXX-XX-" + FormatSSN(n)[7:]
}
