// Package apperror defines the typed failures returned by the ledger services.
// Every business-rule outcome carries a Kind so the transport layer can map it
// to a precise response and decide whether a retry is allowed.
package apperror

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies a ledger failure.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindRestrictionDenied   Kind = "restriction_denied"
	KindDailyLimitExceeded  Kind = "daily_limit_exceeded"
	KindSessionConflict     Kind = "session_conflict"
	KindNotFound            Kind = "not_found"
	KindConcurrencyConflict Kind = "concurrency_conflict"
)

// Error is the canonical failure of every ledger operation.
type Error struct {
	Kind    Kind
	Message string
	// Line is the zero-based sale line that caused the failure, when any.
	Line      *int
	ProductID *uuid.UUID
	// Notes are the observation notes stored for the account, surfaced on denials.
	Notes *string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Line != nil {
		msg = fmt.Sprintf("line %d: %s", *e.Line+1, msg)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so callers can write
// errors.Is(err, apperror.ErrInsufficientFunds).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the caller may retry the operation automatically.
// Only lock contention and serialization failures qualify; business-rule
// outcomes are final.
func (e *Error) Retryable() bool { return e.Kind == KindConcurrencyConflict }

// Sentinels for errors.Is.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrRestrictionDenied   = &Error{Kind: KindRestrictionDenied}
	ErrDailyLimitExceeded  = &Error{Kind: KindDailyLimitExceeded}
	ErrSessionConflict     = &Error{Kind: KindSessionConflict}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func SessionConflict(format string, args ...any) *Error {
	return New(KindSessionConflict, format, args...)
}

// AtLine attaches the offending sale line and product to the error.
func (e *Error) AtLine(line int, productID uuid.UUID) *Error {
	e.Line = &line
	e.ProductID = &productID
	return e
}

// WithNotes attaches account observation notes to the error.
func (e *Error) WithNotes(notes *string) *Error {
	if notes != nil && *notes != "" {
		n := *notes
		e.Notes = &n
	}
	return e
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a ConcurrencyConflict.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
