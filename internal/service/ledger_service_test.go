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

func TestCredit_RecordsSnapshots(t *testing.T) {
	e := newTestEnv(t)
	acc := e.seedStudent(t, "10.00", nil)

	mov, err := e.accounts.Credit(context.Background(), actor, acc.ID, dto.CreditRequest{Amount: d("5.25"), Description: "pix top-up"})
	require.NoError(t, err)
	assert.Equal(t, model.MovementCredit, mov.Kind)
	assert.Equal(t, 1, mov.Sign)
	assert.Equal(t, "10", mov.BalanceBefore.String())
	assert.Equal(t, "15.25", mov.BalanceAfter.String())
	assert.Equal(t, "15.25", e.reloadAccount(t, acc.ID).Balance.String())
}

func TestCredit_RejectsNonPositiveAmount(t *testing.T) {
	e := newTestEnv(t)
	acc := e.seedStudent(t, "0", nil)

	for _, amount := range []string{"0", "-3"} {
		_, err := e.accounts.Credit(context.Background(), actor, acc.ID, dto.CreditRequest{Amount: d(amount), Description: "bad"})
		requireKind(t, err, apperror.KindValidation)
	}
}

func TestAdjust_NeverOverdraws(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acc := e.seedStudent(t, "8.00", nil)

	_, err := e.accounts.Adjust(ctx, actor, acc.ID, dto.AdjustRequest{Amount: d("8.01"), Sign: -1, Description: "correction"})
	requireKind(t, err, apperror.KindInsufficientFunds)
	assert.Equal(t, "8", e.reloadAccount(t, acc.ID).Balance.String())

	mov, err := e.accounts.Adjust(ctx, actor, acc.ID, dto.AdjustRequest{Amount: d("8"), Sign: -1, Description: "correction"})
	require.NoError(t, err)
	assert.Equal(t, model.MovementAdjust, mov.Kind)
	assert.True(t, e.reloadAccount(t, acc.ID).Balance.IsZero())
}

func TestReverse_OnlyOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acc := e.seedStudent(t, "0", nil)

	credit, err := e.accounts.Credit(ctx, actor, acc.ID, dto.CreditRequest{Amount: d("12"), Description: "top-up"})
	require.NoError(t, err)
	creditID := uuid.MustParse(credit.ID)

	rev, err := e.accounts.Reverse(ctx, actor, creditID, dto.ReverseRequest{Reason: "card chargeback"})
	require.NoError(t, err)
	assert.Equal(t, model.MovementDebit, rev.Kind)
	assert.Equal(t, -1, rev.Sign)
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, credit.ID, *rev.ReversalOf)
	assert.True(t, e.reloadAccount(t, acc.ID).Balance.IsZero())

	_, err = e.accounts.Reverse(ctx, actor, creditID, dto.ReverseRequest{Reason: "again"})
	requireKind(t, err, apperror.KindValidation)

	// A reversal cannot itself be reversed.
	_, err = e.accounts.Reverse(ctx, actor, uuid.MustParse(rev.ID), dto.ReverseRequest{Reason: "undo"})
	requireKind(t, err, apperror.KindValidation)

	_, err = e.accounts.Reverse(ctx, actor, uuid.New(), dto.ReverseRequest{Reason: "missing"})
	requireKind(t, err, apperror.KindNotFound)
}

func TestReverse_CreditAlreadySpent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	session := e.openSession(t, "0")
	acc := e.seedStudent(t, "0", nil)
	p := e.seedProduct(t, e.seedType(t, "food").ID, "9.00", 5, true)

	credit, err := e.accounts.Credit(ctx, actor, acc.ID, dto.CreditRequest{Amount: d("10"), Description: "top-up"})
	require.NoError(t, err)
	_, err = e.sales.Execute(ctx, actor, studentSale(session, acc, item(p, 1)))
	require.NoError(t, err)

	_, err = e.accounts.Reverse(ctx, actor, uuid.MustParse(credit.ID), dto.ReverseRequest{Reason: "chargeback"})
	requireKind(t, err, apperror.KindInsufficientFunds)
	assert.Equal(t, "1", e.reloadAccount(t, acc.ID).Balance.String())
}

func TestReverse_SaleDebitGoesThroughCancel(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	session := e.openSession(t, "0")
	acc := e.seedStudent(t, "20", nil)
	p := e.seedProduct(t, e.seedType(t, "food").ID, "5.00", 5, true)

	sale, err := e.sales.Execute(ctx, actor, studentSale(session, acc, item(p, 2)))
	require.NoError(t, err)
	saleID := uuid.MustParse(sale.ID)

	var debit model.MovementEntry
	require.NoError(t, e.db.Where("sale_id = ? AND kind = ?", saleID, model.MovementDebit).First(&debit).Error)

	_, err = e.accounts.Reverse(ctx, actor, debit.ID, dto.ReverseRequest{Reason: "refund at counter"})
	requireKind(t, err, apperror.KindValidation)
	assert.Equal(t, "10", e.reloadAccount(t, acc.ID).Balance.String())
	assert.Zero(t, e.count(t, &model.MovementEntry{}, "reversal_of = ?", debit.ID))

	// The sale can still be cancelled, restoring balance and stock together.
	cancelled, err := e.sales.Cancel(ctx, actor, saleID, dto.CancelSaleRequest{Reason: "refund at counter"})
	require.NoError(t, err)
	assert.Equal(t, model.SaleCancelled, cancelled.Status)
	assert.Equal(t, "20", e.reloadAccount(t, acc.ID).Balance.String())
	assert.Equal(t, 5, e.reloadProduct(t, p.ID).Quantity)
}

func TestListMovements_NewestFirst(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acc := e.seedStudent(t, "1", nil)
	for i := 0; i < 3; i++ {
		e.clock.Advance(time.Minute)
		_, err := e.accounts.Credit(ctx, actor, acc.ID, dto.CreditRequest{Amount: d("1"), Description: "top-up"})
		require.NoError(t, err)
	}

	page, err := e.accounts.ListMovements(ctx, acc.ID, dto.PageQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "4", page.Data[0].BalanceAfter.String())
	assert.Equal(t, "3", page.Data[1].BalanceAfter.String())

	_, err = e.accounts.ListMovements(ctx, uuid.New(), dto.PageQuery{Page: 1, Limit: 2})
	requireKind(t, err, apperror.KindNotFound)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acc := e.seedStudent(t, "25.00", nil)

	rec, err := e.accounts.Reconcile(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)

	// Someone edits the projection behind the ledger's back.
	require.NoError(t, e.db.Model(&model.Account{}).Where("id = ?", acc.ID).Update("balance", d("30")).Error)
	rec, err = e.accounts.Reconcile(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assert.Equal(t, "25", rec.LedgerSum.String())
	assert.Equal(t, "30", rec.Projection.String())
}

func TestDayBounds(t *testing.T) {
	// 01:30 UTC on the 11th is still the 10th in BRT.
	from, to := dayBounds(time.Date(2026, 3, 11, 1, 30, 0, 0, time.UTC), testLoc)
	assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), to)
}

func TestReversalOf(t *testing.T) {
	sale := uuid.New()
	orig := &model.MovementEntry{ID: uuid.New(), AccountID: uuid.New(), Kind: model.MovementAdjust, Sign: -1, Amount: d("4"), SaleID: &sale}

	in := reversalOf(orig, actor, "typo")
	assert.Equal(t, model.MovementAdjust, in.Kind)
	assert.Equal(t, 1, in.Sign)
	assert.Equal(t, orig.ID, *in.ReversalOf)
	assert.Equal(t, &sale, in.SaleID)
	assert.Equal(t, "reversal: typo", in.Description)
}
