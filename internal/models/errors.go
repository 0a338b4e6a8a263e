package models

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind classifies failures surfaced to HTTP callers.
type ErrorKind string

const (
	KindFormatInvalid     ErrorKind = "FormatInvalid"
	KindFileMissing       ErrorKind = "FileMissing"
	KindFileInvalid       ErrorKind = "FileInvalid"
	KindFileTooLarge      ErrorKind = "FileTooLarge"
	KindFileUnreadable    ErrorKind = "FileUnreadable"
	KindExtractionFailed  ErrorKind = "ExtractionFailed"
	KindEmptyDocument     ErrorKind = "EmptyDocument"
	KindInvalidCredential ErrorKind = "InvalidCredential"
	KindRateLimited       ErrorKind = "RateLimited"
	KindBadRequest        ErrorKind = "BadRequest"
	KindContentDeclined   ErrorKind = "ContentDeclined"
	KindMalformedSummary  ErrorKind = "MalformedSummary"
	KindTimeout           ErrorKind = "Timeout"
	KindThrottled         ErrorKind = "Throttled"
	KindNotConfigured     ErrorKind = "NotConfigured"
	KindProviderError     ErrorKind = "ProviderError"
	KindInternalError     ErrorKind = "InternalError"
)

// Error is a classified failure. Message is safe to show to the caller; the
// cause is kept for logs and development responses.
type Error struct {
	Kind    ErrorKind
	Message string

	cause    error
	hasCause bool
}

// NewError builds a classified error and records the stack at the call site.
func NewError(kind ErrorKind, message string, cause error) *Error {
	e := &Error{Kind: kind, Message: message, hasCause: cause != nil}
	if cause != nil {
		e.cause = pkgerrors.WithStack(cause)
	} else {
		e.cause = pkgerrors.New(message)
	}
	return e
}

func (e *Error) Error() string {
	if e.hasCause {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, errors.Unwrap(e.cause))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if !e.hasCause {
		return nil
	}
	return errors.Unwrap(e.cause)
}

// Stack renders the cause chain together with the captured stack trace.
func (e *Error) Stack() string {
	return fmt.Sprintf("%+v", e.cause)
}

// KindOf returns the kind of err, or KindInternalError for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalError
}

// AsError returns err as a classified error, wrapping it as an internal error
// when it is not one already.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindInternalError, "Internal server error", err)
}

var kindStatus = map[ErrorKind]int{
	KindFormatInvalid:     http.StatusBadRequest,
	KindFileMissing:       http.StatusBadRequest,
	KindFileInvalid:       http.StatusBadRequest,
	KindEmptyDocument:     http.StatusBadRequest,
	KindFileTooLarge:      http.StatusRequestEntityTooLarge,
	KindInvalidCredential: http.StatusUnauthorized,
	KindContentDeclined:   http.StatusUnprocessableEntity,
	KindRateLimited:       http.StatusTooManyRequests,
	KindThrottled:         http.StatusTooManyRequests,
	KindMalformedSummary:  http.StatusBadGateway,
	KindTimeout:           http.StatusGatewayTimeout,
}

// HTTPStatus maps kind to the response status code. Kinds without an entry,
// including provider and extraction failures, map to 500.
func HTTPStatus(kind ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
