package adapter

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
)

const nonNegativeIntegerMessage = "Value must be a positive integer."

// ValidateNonNegativeInteger parses raw as a base-10 integer and requires it
// to be >= 0. present is false when the parameter was absent.
//
// Absent or unparsable input is malformed (422). Input that parses but is
// negative, or is too large to represent, is semantically invalid (400).
// Surrounding whitespace, a leading sign and underscores between digits are
// accepted.
func ValidateNonNegativeInteger(raw string, present bool) (int, *domain.APIError) {
	if !present {
		return 0, domain.ErrMalformed(nonNegativeIntegerMessage)
	}

	digits, ok := normalizeInteger(raw)
	if !ok {
		return 0, domain.ErrMalformed(nonNegativeIntegerMessage)
	}

	n, err := strconv.ParseInt(digits, 10, strconv.IntSize)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, domain.ErrInvalid(nonNegativeIntegerMessage)
		}
		return 0, domain.ErrMalformed(nonNegativeIntegerMessage)
	}
	if n < 0 {
		return 0, domain.ErrInvalid(nonNegativeIntegerMessage)
	}
	return int(n), nil
}

// normalizeInteger trims whitespace and strips digit-group underscores,
// rejecting underscores that are not between two digits.
func normalizeInteger(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "_") {
		return s, s != ""
	}

	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 {
		return "", false
	}
	var b strings.Builder
	b.WriteString(s[:len(s)-len(body)])
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '_' {
			if i == 0 || i == len(body)-1 || !isDigit(body[i-1]) || !isDigit(body[i+1]) {
				return "", false
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
