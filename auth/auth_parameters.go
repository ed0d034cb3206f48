package auth

import (
	"github.com/jrsteele09/dashboard-auth/token"
)

// Credentials are the fields of the login form.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the sign-up form. Email is optional.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// LoginResult is what a successful login or registration hands to the
// session: who signed in and the token bundle to persist.
type LoginResult struct {
	Username string      `json:"username"`
	Token    token.Token `json:"token"`
}
