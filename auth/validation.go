package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/users"
	"github.com/pkg/errors"
)

// MinPasswordLength is what the sign-up form enforces before calling Register.
const MinPasswordLength = 6

func (c Credentials) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
	if err != nil {
		return errors.Wrap(autherrors.ErrValidation, err.Error())
	}
	return nil
}

func (r Registration) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Email, is.Email),
	)
	if err != nil {
		return errors.Wrap(autherrors.ErrValidation, err.Error())
	}
	return nil
}

// ValidatePasswordLength is left to callers; Register itself accepts any
// non-empty password.
func ValidatePasswordLength(password string, min int) error {
	if err := users.ValidatePasswordLength(password, min); err != nil {
		return errors.Wrap(autherrors.ErrValidation, err.Error())
	}
	return nil
}
