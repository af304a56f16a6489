package service

import (
	"context"
	"testing"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthBounds(t *testing.T) {
	from, to, err := monthBounds("2026-03", testLoc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC), to)

	for _, bad := range []string{"2026-13", "2026-00", "2026-3", "26-03", "2026/03", ""} {
		_, _, err := monthBounds(bad, testLoc)
		requireKind(t, err, apperror.KindValidation)
	}
}

func TestRecompute_CollectsMonthSalesAndIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	session := e.openSession(t, "0")
	emp := e.seedEmployee(t)
	other := e.seedEmployee(t)
	p := e.seedProduct(t, e.seedType(t, "food").ID, "12.50", 0, false)

	// 28 Feb 23:30 local is still February.
	e.clock.Set(time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC))
	_, err := e.sales.Execute(ctx, actor, employeeSale(session, emp, item(p, 1)))
	require.NoError(t, err)

	e.clock.Set(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	first, err := e.sales.Execute(ctx, actor, employeeSale(session, emp, item(p, 2)))
	require.NoError(t, err)
	e.clock.Advance(time.Hour)
	second, err := e.sales.Execute(ctx, actor, employeeSale(session, emp, item(p, 1)))
	require.NoError(t, err)
	_, err = e.sales.Execute(ctx, actor, employeeSale(session, other, item(p, 1)))
	require.NoError(t, err)
	cancelled, err := e.sales.Execute(ctx, actor, employeeSale(session, emp, item(p, 4)))
	require.NoError(t, err)
	_, err = e.sales.Cancel(ctx, actor, uuid.MustParse(cancelled.ID), dto.CancelSaleRequest{Reason: "not taken"})
	require.NoError(t, err)

	inv, err := e.invoices.Recompute(ctx, emp.ID, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, "37.5", inv.Total.String())
	require.Len(t, inv.Items, 2)
	assert.Equal(t, first.ID, inv.Items[0].SaleID)
	assert.Equal(t, second.ID, inv.Items[1].SaleID)
	require.NotNil(t, inv.RecomputedAt)

	again, err := e.invoices.Recompute(ctx, emp.ID, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)
	assert.Equal(t, inv.Total.String(), again.Total.String())
	assert.Len(t, again.Items, 2)
	assert.Equal(t, int64(1), e.count(t, &model.Invoice{}, "employee_id = ?", emp.ID))
	assert.Equal(t, int64(2), e.count(t, &model.InvoiceItem{}, "invoice_id = ?", inv.ID))

	stored, err := e.invoices.Get(ctx, emp.ID, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, "37.5", stored.Total.String())
	assert.Len(t, stored.Items, 2)

	feb, err := e.invoices.Recompute(ctx, emp.ID, "2026-02")
	require.NoError(t, err)
	assert.Equal(t, "12.5", feb.Total.String())
}

func TestRecompute_EmptyMonth(t *testing.T) {
	e := newTestEnv(t)
	emp := e.seedEmployee(t)

	inv, err := e.invoices.Recompute(context.Background(), emp.ID, "2026-01")
	require.NoError(t, err)
	assert.True(t, inv.Total.IsZero())
	assert.Empty(t, inv.Items)
}

func TestRecompute_RejectsUnknownOrNonEmployee(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	student := e.seedStudent(t, "0", nil)

	_, err := e.invoices.Recompute(ctx, uuid.New(), "2026-03")
	requireKind(t, err, apperror.KindNotFound)
	_, err = e.invoices.Recompute(ctx, student.ID, "2026-03")
	requireKind(t, err, apperror.KindNotFound)
	_, err = e.invoices.Recompute(ctx, student.ID, "March")
	requireKind(t, err, apperror.KindValidation)
}

func TestInvoiceGet_NotYetComputed(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.invoices.Get(context.Background(), e.seedEmployee(t).ID, "2026-03")
	requireKind(t, err, apperror.KindNotFound)
}
