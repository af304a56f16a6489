package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[apperror.Kind]int{
		apperror.KindValidation:          http.StatusUnprocessableEntity,
		apperror.KindNotFound:            http.StatusNotFound,
		apperror.KindInsufficientFunds:   http.StatusConflict,
		apperror.KindInsufficientStock:   http.StatusConflict,
		apperror.KindRestrictionDenied:   http.StatusConflict,
		apperror.KindDailyLimitExceeded:  http.StatusConflict,
		apperror.KindSessionConflict:     http.StatusConflict,
		apperror.KindConcurrencyConflict: http.StatusConflict,
		apperror.Kind("something_else"):  http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), kind)
	}
}

func TestFromError_RestrictionDeniedCarriesLineAndNotes(t *testing.T) {
	pid := uuid.New()
	notes := "allergic to peanuts"
	err := apperror.New(apperror.KindRestrictionDenied, "peanut bar: not allowed").AtLine(2, pid).WithNotes(&notes)

	status, body := FromError(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "restriction_denied", body.Kind)
	require.NotNil(t, body.Line)
	assert.Equal(t, 2, *body.Line)
	require.NotNil(t, body.ProductID)
	assert.Equal(t, pid.String(), *body.ProductID)
	require.NotNil(t, body.Notes)
	assert.Equal(t, notes, *body.Notes)
	assert.Contains(t, body.Detail, "line 3")
}

func TestFromError_HidesStorageCause(t *testing.T) {
	err := apperror.FromDB(errors.New("boom"), "sale")
	status, body := FromError(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body.Detail)

	wrapped := &apperror.Error{Kind: apperror.KindConcurrencyConflict, Message: "concurrent update on sale", Err: errors.New("pq: deadlock detected")}
	status, body = FromError(wrapped)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "concurrent update on sale", body.Detail)
	assert.NotContains(t, body.Detail, "deadlock")
}
