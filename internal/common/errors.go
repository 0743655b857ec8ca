// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
)

// Sentinel errors shared across packages. Callers wrap them with %w and test
// with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrNoCategories = errors.New("no categories available")
	// ErrConflict is returned when a batch classification job is already running.
	ErrConflict      = errors.New("a classification job is already running")
	ErrNotConfigured = errors.New("provider credentials not configured")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError carries a message meant for the person at the terminal along
// with the underlying cause.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return e.UserMessage + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError wraps err with a message shown to users instead of the chain.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}

// IsRetryable reports whether err is worth another attempt. An explicit
// RetryableError decides; otherwise only deadlines are retried.
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
