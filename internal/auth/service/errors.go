package service

import "errors"

var (
	// ErrInvalidCredentials is returned by Login. It never says whether the
	// username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrUnauthenticated covers missing, malformed, expired and revoked tokens.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is surfaced by flows where the enumeration risk is accepted,
	// such as forgot-password.
	ErrNotFound = errors.New("not_found")

	ErrUserExists   = errors.New("user_exists")
	ErrWeakPassword = errors.New("weak_password")
	ErrInvalidInput = errors.New("invalid_input")
)
