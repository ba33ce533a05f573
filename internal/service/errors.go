package service

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// Unknown identities and wrong passwords both produce it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateIdentity is returned when a username or email is already taken.
	ErrDuplicateIdentity = errors.New("an account with this email or username already exists")
	// ErrValidation marks malformed input that is not covered by a more specific error.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when the subject account no longer exists.
	ErrNotFound = errors.New("account not found")

	// ErrAdminIdentityTaken is returned at bootstrap when the configured
	// administrator username or email belongs to a different account.
	ErrAdminIdentityTaken = errors.New("bootstrap admin identity is held by another account")

	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrSamePassword         = errors.New("new password must differ from the current one")
	ErrPolicyViolation      = errors.New("password does not meet the policy")
	ErrConfirmationMismatch = errors.New("password confirmation does not match")
)

// FieldError describes a rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError groups field level input problems. It wraps Kind so callers
// can still match the specific failure with errors.Is.
type ValidationError struct {
	Kind   error
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	if len(msgs) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func fieldError(kind error, field, message string) *ValidationError {
	return &ValidationError{
		Kind:   kind,
		Fields: []FieldError{{Field: field, Message: message}},
	}
}
