package hash

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type HashError struct {
	Err error
}

func (e *HashError) Error() string { return fmt.Sprintf("hash password: %v", e.Err) }
func (e *HashError) Unwrap() error { return e.Err }

type ComparisonError struct {
	Err error
}

func (e *ComparisonError) Error() string { return fmt.Sprintf("compare password: %v", e.Err) }
func (e *ComparisonError) Unwrap() error { return e.Err }

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", &HashError{Err: errors.New("empty password")}
	}
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", &HashError{Err: err}
	}

	return string(hashbytes), nil
}

// ComparePassword reports whether password matches hash. A mismatch is not
// an error; a hash that bcrypt cannot read is.
func ComparePassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, &ComparisonError{Err: err}
	}
}
