package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// RepositoryError wraps a storage failure with the operation that caused it.
// Services return it as-is; retry policy belongs to the caller.
type RepositoryError struct {
	Op  string
	Err error
}

func NewRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Op: op, Err: err}
}

func (err RepositoryError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err RepositoryError) Unwrap() error { return err.Err }

// Cause implements the pkg/errors causer interface.
func (err RepositoryError) Cause() error { return err.Err }

func IsRepositoryError(err error) bool {
	_, ok := err.(*RepositoryError)
	return ok
}

type shutdown struct {
	message string
}

// NewShutdownError returns an error signaling that data integrity can no
// longer be guaranteed and the application should stop.
func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
