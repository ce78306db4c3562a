package balances

import (
	"fmt"
	"strings"
)

// InvalidRangeError is the user-facing validation error raised for a
// malformed account filter. It names the offending value so the caller can
// correct and retry.
type InvalidRangeError struct {
	Value string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("balances: invalid account range %q: bounds may contain digits, '.' and '-' only", e.Value)
}

// AccountRange is a parsed account filter. A bare prefix matches every
// account number starting with it; a dashed range matches numbers between
// the bounds inclusive, with the upper bound also prefix-matched.
type AccountRange struct {
	Low  string
	High string
}

// ParseAccountRange parses a free-text account filter: either "1101" or
// "1101 - 1299". Each bound may contain digits, '.' and '-' only.
func ParseAccountRange(raw string) (AccountRange, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return AccountRange{}, &InvalidRangeError{Value: raw}
	}
	if low, high, ok := strings.Cut(text, " - "); ok {
		low, high = strings.TrimSpace(low), strings.TrimSpace(high)
		if !isValidBound(low) {
			return AccountRange{}, &InvalidRangeError{Value: low}
		}
		if !isValidBound(high) {
			return AccountRange{}, &InvalidRangeError{Value: high}
		}
		return AccountRange{Low: low, High: high}, nil
	}
	if !isValidBound(text) {
		return AccountRange{}, &InvalidRangeError{Value: text}
	}
	return AccountRange{Low: text}, nil
}

func validateRangeBound(bound string) error {
	if bound == "" {
		return nil
	}
	if !isValidBound(bound) {
		return &InvalidRangeError{Value: bound}
	}
	return nil
}

func isValidBound(bound string) bool {
	if bound == "" {
		return false
	}
	for _, r := range bound {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

// Matches reports whether the account number falls inside the range.
func (r AccountRange) Matches(accountNumber string) bool {
	if r.High == "" {
		return strings.HasPrefix(accountNumber, r.Low)
	}
	if strings.HasPrefix(accountNumber, r.High) {
		return true
	}
	return accountNumber >= r.Low && accountNumber <= r.High
}
