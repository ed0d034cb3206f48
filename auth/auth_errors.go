package auth

import autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"

// Errors returned by Service. Callers match them with errors.Is.
var (
	ErrValidation           = autherrors.ErrValidation
	ErrAuthenticationFailed = autherrors.ErrAuthenticationFailed
	ErrDuplicateUser        = autherrors.ErrDuplicateUser
	ErrServiceUnavailable   = autherrors.ErrServiceUnavailable
)
