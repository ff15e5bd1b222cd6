package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password policy for registered accounts. Guests have no password.
const (
	minPasswordLength = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

// HashPassword enforces the password policy and returns a bcrypt hash.
func HashPassword(password string) (string, error) {
	if err := validatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// PasswordMatches reports whether password matches the stored hash.
// Accounts without a hash, such as guests, never match.
func PasswordMatches(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrInvalidPassword
	}
	if strings.TrimSpace(password) == "" {
		return ErrInvalidPassword
	}
	return nil
}
