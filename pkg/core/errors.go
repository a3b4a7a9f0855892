package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound     = errors.New("note not found")
	ErrNoActiveNote = errors.New("no note selected")
	ErrClosed       = errors.New("session is closed")
	ErrUnsupported  = errors.New("operation not supported")
)

// AuthError reports a failed identity provider call (bad credentials, network).
type AuthError struct {
	Op  string // e.g. "Sign-in"
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RepositoryError reports a failed read or write against a note repository.
type RepositoryError struct {
	Op  string
	ID  string
	Err error
}

func (e *RepositoryError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.ID, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// DecodeError reports a corrupt compressed payload. It is absorbed locally.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode content: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a missing or malformed required input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewRepositoryError wraps err unless it already is a *RepositoryError.
func NewRepositoryError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr *RepositoryError
	if errors.As(err, &repoErr) {
		return err
	}
	return &RepositoryError{Op: op, ID: id, Err: err}
}
