package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound     = errors.New("record not found")
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrTaskNotFound = fmt.Errorf("task %w", ErrNotFound)

	// ErrNotFoundOrForbidden covers an owner-scoped write that matched no row.
	// The store cannot tell a missing task from one owned by someone else.
	ErrNotFoundOrForbidden = errors.New("task not found or access denied")

	// ErrDuplicate matches gorm's translated unique-constraint error.
	ErrDuplicate = gorm.ErrDuplicatedKey
)

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
