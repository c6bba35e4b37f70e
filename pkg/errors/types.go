package errors

import (
	"fmt"
	"os"
	"strings"
)

// ErrInterrupted is returned when an operation stops early because its
// context was cancelled.
var ErrInterrupted = New("interrupted by user")

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// NotFoundError represents a required path that doesn't exist. It's fatal to
// the operation that needed the path, but never to the whole run.
type NotFoundError struct {
	Path string
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// PermissionError represents an entry that couldn't be accessed. Entries with
// permission errors are skipped and logged.
type PermissionError struct {
	Path string
	Err  error
}

func (err PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %q: %s", err.Path, err.Err)
}

func (err PermissionError) Unwrap() error {
	return err.Err
}

// PartialFailure is returned when an operation completed some, but not all,
// of its independent units of work.
type PartialFailure struct {
	Op     string
	Failed []string
}

func (err PartialFailure) Error() string {
	return fmt.Sprintf("%s: %d failed: %s", err.Op, len(err.Failed),
		strings.Join(err.Failed, ", "))
}

// Classify converts filesystem errors for `path` into NotFoundError or
// PermissionError. Other errors are returned with `path` as context.
func Classify(path string, err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(RootCause(err)):
		return NotFoundError{Path: path}
	case os.IsPermission(RootCause(err)):
		return PermissionError{Path: path, Err: err}
	default:
		return WithContext(err, path)
	}
}
