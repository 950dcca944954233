package core

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// ValidateUsername enforces the signup username policy: at least three
// characters, letters and digits only. The HTTP layer applies the same rules;
// strategies re-check so the policy holds no matter who calls them.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength {
		return fmt.Errorf("%w: username must have at least %d characters", ErrValidation, minUsernameLength)
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("%w: username must be alphanumeric", ErrValidation)
		}
	}
	return nil
}

// ValidatePassword enforces the password complexity policy: minimum length
// plus at least one uppercase letter, one lowercase letter, one digit, and
// one symbol.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrValidation, minPasswordLength)
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return fmt.Errorf("%w: password must contain an uppercase letter, a lowercase letter, a digit, and a symbol", ErrValidation)
	}
	return nil
}

// ValidateSignup checks the full signup input, including the confirmation.
func ValidateSignup(username, password, confirmation string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != confirmation {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	return nil
}
