package auth

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if NeedsRehash(hash) {
		t.Fatalf("fresh bcrypt hash should not need a rehash")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
}

func TestCheckPasswordAcceptsLegacyEncoding(t *testing.T) {
	legacy := base64.StdEncoding.EncodeToString([]byte("hunter22"))
	if !CheckPassword("hunter22", legacy) {
		t.Fatalf("expected legacy hash to verify")
	}
	if CheckPassword("hunter23", legacy) {
		t.Fatalf("expected wrong password to fail against legacy hash")
	}
	if !NeedsRehash(legacy) {
		t.Fatalf("legacy hash should be upgraded")
	}
	if CheckPassword("", "") {
		t.Fatalf("empty stored hash must never verify")
	}
}

func TestValidateCredentials(t *testing.T) {
	if err := ValidateCredentials("ada", "abcdef"); err != nil {
		t.Fatalf("expected valid credentials, got %v", err)
	}
	if err := ValidateCredentials("  ", "abcdef"); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("expected ErrUsernameRequired, got %v", err)
	}
	if err := ValidateCredentials("ada", "abcde"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := ValidatePassword("密码密码密码"); err != nil {
		t.Fatalf("six runes should pass: %v", err)
	}
}
