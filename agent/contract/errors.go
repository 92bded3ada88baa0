package contract

import (
	"context"
	"errors"
	"fmt"

	storex "github.com/tanpawarit/chative-gateway/agent/store"
)

var (
	ErrParseNoMatch        = errors.New("no recognizer matched the message")
	ErrValidation          = errors.New("validation failed")
	ErrProviderUnavailable = errors.New("capability provider unavailable")
	ErrToolNotFound        = errors.New("tool not registered")
	ErrInvalidMessage      = errors.New("message is empty")
	ErrModelInvoke         = errors.New("model invoke failed")
	ErrPromptMissing       = errors.New("required prompt is missing")

	ErrDuplicateKey = storex.ErrDuplicateKey
	ErrNotFound     = storex.ErrNotFound
	ErrStorageIO    = storex.ErrStorageIO
)

// ErrorKind is the stable, wire-visible classification of a failed tool call.
type ErrorKind string

const (
	KindParseNoMatch        ErrorKind = "parse_no_match"
	KindValidation          ErrorKind = "validation_error"
	KindDuplicateKey        ErrorKind = "duplicate_key"
	KindNotFound            ErrorKind = "not_found"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindStorageIO           ErrorKind = "storage_io"
	KindRemote              ErrorKind = "remote_error"
	KindToolNotFound        ErrorKind = "tool_not_found"
	KindInternal            ErrorKind = "internal"
)

// FieldError names the parameter that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func MissingField(field string) error {
	return &FieldError{Field: field, Reason: "is required"}
}

// RemoteError is a failure reported by a remote provider in its own result,
// as opposed to a transport failure.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func KindOf(err error) ErrorKind {
	var remote *RemoteError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, storex.ErrInvalidRecord):
		return KindValidation
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorageIO):
		return KindStorageIO
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, context.DeadlineExceeded):
		return KindProviderUnavailable
	case errors.Is(err, ErrToolNotFound):
		return KindToolNotFound
	case errors.Is(err, ErrParseNoMatch):
		return KindParseNoMatch
	case errors.As(err, &remote):
		return KindRemote
	default:
		return KindInternal
	}
}

// UserError pairs a caller-facing message with the underlying cause.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func WithMessage(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &UserError{Message: fmt.Sprintf(format, args...), Err: err}
}
