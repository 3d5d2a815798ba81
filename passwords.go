package otherus

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the registration password policy. Login applies no
// policy - old accounts keep working if the policy ever tightens.
const MinPasswordLength = 8

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether the address is syntactically plausible.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword enforces the signup password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword computes a salted bcrypt hash of the plaintext. The
// plaintext is never stored anywhere.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext against a stored bcrypt hash. An
// empty hash (OAuth-only account) never matches.
func VerifyPassword(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
