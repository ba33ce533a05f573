package service

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	passwordCost      = 10
	minPasswordLength = 6
	// bcrypt rejects longer input.
	maxPasswordBytes = 72
	bcryptHashLength = 60
)

// isHashed reports whether value is a well-formed bcrypt hash.
func isHashed(value string) bool {
	if len(value) != bcryptHashLength {
		return false
	}
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

// hashPassword returns a salted bcrypt hash of password. Values that are
// already bcrypt hashes come back unchanged.
func hashPassword(password string) (string, error) {
	if isHashed(password) {
		return password, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// checkPasswordPolicy returns a description of the first unmet rule, or "".
func checkPasswordPolicy(password string) string {
	if len(password) < minPasswordLength {
		return fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return "password must contain a lowercase letter, an uppercase letter and a digit"
	}
	return ""
}
