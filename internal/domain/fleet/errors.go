package fleet

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentityLength = errors.New("raptor id must be exactly 24 characters")
	ErrDuplicateIdentity     = errors.New("raptor id already commissioned")
	ErrDuplicateCredential   = errors.New("api key already in use")
	ErrMissingField          = errors.New("required field is missing")
	ErrNotFound              = errors.New("not found")
	ErrStoreUnavailable      = errors.New("store unavailable")

	ErrInvalidCredential = errors.New("api key must be at most 64 characters")
)

// MissingFieldError names the empty field. It matches ErrMissingField with
// errors.Is.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField.Error(), e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

func MissingField(field string) error {
	return &MissingFieldError{Field: field}
}

// Retryable reports whether the caller should retry err with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
