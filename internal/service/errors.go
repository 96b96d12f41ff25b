package service

import (
	"errors"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrOwnerNotFound      = errors.New("owner not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
)

// ValidationError carries every field message of a rejected request.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msgs ...string) error {
	return &ValidationError{Messages: msgs}
}
