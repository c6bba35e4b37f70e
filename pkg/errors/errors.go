// Package errors provides the error helpers used throughout treeaudit. Errors
// are annotated with a short verb phrase describing what was being attempted
// (e.g. "read dir"), so that the final message reads like a stack of
// operations: "sync models: copy \"A\": open: permission denied".
package errors

import (
	goerrors "errors"
	"fmt"
)

// New returns an error with the given formatted message.
func New(format string, a ...interface{}) error {
	if len(a) == 0 {
		return goerrors.New(format)
	}
	return fmt.Errorf(format, a...)
}

// WithContext annotates `err` with `context`. A nil error stays nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return errorWithContext{context: context, err: err}
}

type errorWithContext struct {
	context string
	err     error
}

func (err errorWithContext) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err errorWithContext) Unwrap() error {
	return err.err
}

// RootCause strips all the context added by WithContext.
func RootCause(err error) error {
	for {
		withContext, ok := err.(errorWithContext)
		if !ok {
			return err
		}
		err = withContext.err
	}
}

// FriendlyError is an error whose message is meant to be shown to the user
// as-is, without any debugging context.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError with the given formatted message.
func NewFriendlyError(format string, a ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, a...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the user-facing message.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return goerrors.As(err, target)
}
