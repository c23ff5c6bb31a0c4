package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrUsernameRequired = errors.New("username is required")
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies password against a stored hash. Besides bcrypt it accepts the legacy
// base64 encoding older documents were written with.
func CheckPassword(password, stored string) bool {
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	legacy := base64.StdEncoding.EncodeToString([]byte(password))
	return stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(legacy)) == 1
}

// NeedsRehash reports whether stored should be replaced by a bcrypt hash after a successful login.
func NeedsRehash(stored string) bool {
	return !isBcrypt(stored)
}

// ValidateCredentials applies the registration rules: a non-blank username and a password of at
// least MinPasswordLength characters.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameRequired
	}
	return ValidatePassword(password)
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}
