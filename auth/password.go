package auth

import (
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 10

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8
)

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// ValidatePassword checks if a password matches the hash in constant time.
func ValidatePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

var (
	hasUpperRe  = regexp.MustCompile(`[A-Z]`)
	hasLowerRe  = regexp.MustCompile(`[a-z]`)
	hasDigitRe  = regexp.MustCompile(`[0-9]`)
	validEmailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// CheckPasswordStrength enforces the password policy: minimum 8 characters,
// at least one uppercase letter, one lowercase letter, and one digit.
func CheckPasswordStrength(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if !hasUpperRe.MatchString(password) || !hasLowerRe.MatchString(password) || !hasDigitRe.MatchString(password) {
		return ErrWeakPassword
	}
	return nil
}

// ValidateEmail validates email format and is required: unlike the
// teacher's optional-email policy, every account here is keyed by email.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidEmail
	}
	if !validEmailRe.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail lowercases an email address so uniqueness and lookup are
// case-insensitive, per the identity store's invariant.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
