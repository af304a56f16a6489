// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"net/http"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Kind, Line, ProductID and Notes are set for ledger rule failures so the
// point of sale can show exactly which line was refused and why.
type APIError struct {
	Detail    string  `json:"detail"`
	Kind      string  `json:"kind,omitempty"`
	Line      *int    `json:"line,omitempty"`
	ProductID *string `json:"product_id,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Kind: string(apperror.KindValidation), Fields: fields}
}

// StatusFor returns the HTTP status for a ledger error kind.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusUnprocessableEntity
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInsufficientFunds,
		apperror.KindInsufficientStock,
		apperror.KindRestrictionDenied,
		apperror.KindDailyLimitExceeded,
		apperror.KindSessionConflict,
		apperror.KindConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromError converts err into a status and a client-safe body. Errors that
// are not typed ledger errors become a generic 500; the caller logs them.
func FromError(err error) (int, *APIError) {
	var e *apperror.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, New("internal server error")
	}
	body := &APIError{
		Detail: e.Error(),
		Kind:   string(e.Kind),
		Line:   e.Line,
		Notes:  e.Notes,
	}
	// Storage causes stay in the logs.
	if e.Err != nil {
		body.Detail = e.Message
	}
	if e.ProductID != nil {
		id := e.ProductID.String()
		body.ProductID = &id
	}
	return StatusFor(e.Kind), body
}
