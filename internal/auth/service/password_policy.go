package service

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 15

	passwordSpecials = "@$!%*?&"
)

// ValidatePassword enforces the signup/reset policy: 8 to 15 characters
// drawn from letters, digits and @$!%*?&, with at least one of each class.
func ValidatePassword(pw string) error {
	if n := len(pw); n < minPasswordLength || n > maxPasswordLength {
		return fmt.Errorf("%w: must be %d to %d characters", ErrWeakPassword, minPasswordLength, maxPasswordLength)
	}

	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case r > unicode.MaxASCII:
			return fmt.Errorf("%w: only ASCII letters, digits and %s are allowed", ErrWeakPassword, passwordSpecials)
		case 'a' <= r && r <= 'z':
			lower = true
		case 'A' <= r && r <= 'Z':
			upper = true
		case '0' <= r && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return fmt.Errorf("%w: character %q is not allowed", ErrWeakPassword, r)
		}
	}

	switch {
	case !lower:
		return fmt.Errorf("%w: needs a lowercase letter", ErrWeakPassword)
	case !upper:
		return fmt.Errorf("%w: needs an uppercase letter", ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: needs a digit", ErrWeakPassword)
	case !special:
		return fmt.Errorf("%w: needs one of %s", ErrWeakPassword, passwordSpecials)
	}
	return nil
}
