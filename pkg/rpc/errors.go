package rpc

import (
	"context"
	"errors"
	"fmt"
)

// Retryable transport conditions.
var (
	ErrTimeout     = errors.New("rpc: timeout waiting for reply")
	ErrNoResponder = errors.New("rpc: no responder for pattern")
	ErrTransport   = errors.New("rpc: transport failure")
)

var (
	// ErrUnavailable wraps the last retryable error once the attempt budget is spent.
	ErrUnavailable = errors.New("rpc: service unavailable")
	// ErrEmptyReply is returned when the remote handler answered with no data.
	ErrEmptyReply = errors.New("rpc: no response received")
)

// Codes carried by a terminal Error.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeUnknownPattern = "UNKNOWN_PATTERN"
	CodeInternal       = "INTERNAL"
)

// Error is an application-level rejection produced by a remote handler. It is never retried.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError creates a terminal error with the given code.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a terminal error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRetryable reports whether err is a transport condition worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNoResponder) ||
		errors.Is(err, ErrTransport)
}

// CodeOf returns the code of a terminal Error in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return ""
}

// MessageOf returns the remote message for a terminal Error, falling back to err.Error().
func MessageOf(err error) string {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	return err.Error()
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return contextError(ctx)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
