package services

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
)

var (
	ErrAuthCredentialsInvalid = errors.New("auth credentials invalid")
	ErrEmailExists            = errors.New("email already exists")
	ErrPasswordMismatch       = errors.New("password mismatch")
	ErrWeakPassword           = errors.New("weak password")
)

const minPasswordLength = 8

func NormalizeAuthEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return ""
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ""
	}
	return email
}

func NormalizeCredentialsInput(emailRaw string, passwordRaw string) (string, string, error) {
	email := NormalizeAuthEmail(emailRaw)
	password := strings.TrimSpace(passwordRaw)
	if email == "" || password == "" {
		return "", "", ErrAuthCredentialsInvalid
	}
	return email, password, nil
}

// ValidateNewPassword checks a password chosen at sign-up or reset.
func ValidateNewPassword(password string, confirmation string) error {
	if strings.TrimSpace(password) == "" || strings.TrimSpace(confirmation) == "" {
		return ErrAuthCredentialsInvalid
	}
	if password != confirmation {
		return ErrPasswordMismatch
	}
	return ValidatePasswordStrength(password)
}

// ValidatePasswordStrength requires an upper-case letter, a lower-case
// letter and a digit.
func ValidatePasswordStrength(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return ErrWeakPassword
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range password {
		hasUpper = hasUpper || unicode.IsUpper(char)
		hasLower = hasLower || unicode.IsLower(char)
		hasDigit = hasDigit || unicode.IsDigit(char)
	}
	if !hasUpper || !hasLower || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}
