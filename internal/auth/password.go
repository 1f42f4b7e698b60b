package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"gitea.jw6.us/james/calhub/internal/apperr"
)

const minPasswordLength = 8

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperr.Validation("Password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.Validation("Password is too long")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
