package users

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// BootstrapUsername etc. describe the account every fresh backing store is
// seeded with.
const (
	BootstrapUsername = "admin"
	BootstrapPassword = "password"
	BootstrapEmail    = "admin@example.com"
)

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Username     string    `json:"username,omitempty"`    // Unique username, the login key
	Email        string    `json:"email,omitempty"`       // Optional contact address
	PasswordHash string    `json:"-"`                     // bcrypt hash - never serialize
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
}

// ValidatePasswordLength rejects passwords shorter than min characters.
// Registration leaves the minimum to its caller.
func ValidatePasswordLength(password string, min int) error {
	if len([]rune(password)) < min {
		return fmt.Errorf("password must be at least %d characters long", min)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's stored hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
