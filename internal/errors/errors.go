package errors

import "errors"

// Error taxonomy shared by the auth, token and session packages
var (
	// Input errors
	ErrValidation = errors.New("validation failed")

	// Authentication errors
	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrDuplicateUser        = errors.New("username already exists")
	ErrServiceUnavailable   = errors.New("login service unavailable")

	// Token errors
	ErrInvalidToken   = errors.New("invalid token object")
	ErrRefreshExpired = errors.New("refresh token expired")

	// Session errors
	ErrInvariantViolation = errors.New("username must be provided when authenticating")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("closed")
)

// IsTerminalRefresh reports whether a refresh failure can never succeed on retry.
func IsTerminalRefresh(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRefreshExpired)
}
