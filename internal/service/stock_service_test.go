package service

import (
	"context"
	"testing"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockAdjust(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.seedProduct(t, e.seedType(t, "drinks").ID, "3.00", 4, true)

	_, err := e.stock.Adjust(ctx, actor, p.ID, dto.StockAdjustRequest{Quantity: 5, Sign: -1, Reason: "breakage"})
	requireKind(t, err, apperror.KindInsufficientStock)
	assert.Equal(t, 4, e.reloadProduct(t, p.ID).Quantity)

	mov, err := e.stock.Adjust(ctx, actor, p.ID, dto.StockAdjustRequest{Quantity: 3, Sign: -1, Reason: "breakage"})
	require.NoError(t, err)
	assert.Equal(t, model.StockAdjust, mov.Kind)
	assert.Equal(t, 4, mov.StockBefore)
	assert.Equal(t, 1, mov.StockAfter)
	assert.Contains(t, e.cache.invalidated, p.ID)

	_, err = e.stock.Receive(ctx, actor, uuid.New(), dto.StockEntryRequest{Quantity: 1, Reason: "delivery"})
	requireKind(t, err, apperror.KindNotFound)
}

func TestStockMovementsAndReconcile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	session := e.openSession(t, "0")
	p := e.seedProduct(t, e.seedType(t, "drinks").ID, "3.00", 6, true)

	_, err := e.sales.Execute(ctx, actor, cashSale(session, "6", item(p, 2)))
	require.NoError(t, err)
	_, err = e.stock.Receive(ctx, actor, p.ID, dto.StockEntryRequest{Quantity: 10, Reason: "delivery"})
	require.NoError(t, err)

	all, err := e.stock.ListMovements(ctx, p.ID, dto.StockMovementFilter{Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	exits, err := e.stock.ListMovements(ctx, p.ID, dto.StockMovementFilter{Kind: model.StockExit, Page: 1, Limit: 50})
	require.NoError(t, err)
	require.Len(t, exits.Data, 1)
	assert.Equal(t, 2, exits.Data[0].Quantity)

	rec, err := e.stock.Reconcile(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 14, rec.Projection)
}

func TestLowStock(t *testing.T) {
	e := newTestEnv(t)
	drinks := e.seedType(t, "drinks")
	low := e.seedProduct(t, drinks.ID, "3.00", 1, true) // min 2
	e.seedProduct(t, drinks.ID, "3.00", 9, true)
	e.seedProduct(t, drinks.ID, "3.00", 0, false) // not stock controlled

	items, err := e.stock.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID.String(), items[0].ProductID)
	assert.Equal(t, 1, items[0].Shortfall)
}

func TestCatalogLookup_ReadThroughCache(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	drinks := e.seedType(t, "drinks")
	p := e.seedProduct(t, drinks.ID, "3.50", 7, true)
	e.cache.invalidated = nil

	got, err := e.catalog.Lookup(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "3.5", got.Price.String())
	assert.Equal(t, 7, got.Quantity)
	assert.Equal(t, drinks.Name, got.TypeName)

	cached, ok := e.cache.Get(ctx, p.ID)
	require.True(t, ok)
	assert.Equal(t, got, cached)

	_, err = e.catalog.Lookup(ctx, uuid.New())
	requireKind(t, err, apperror.KindNotFound)
}

func TestCatalogLookup_RacingSaleIsNotCached(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	session := e.openSession(t, "0")
	p := e.seedProduct(t, e.seedType(t, "snacks").ID, "2.00", 6, true)

	// A sale commits after the lookup read the generation: whatever the
	// lookup loaded must not be cached.
	e.cache.afterGeneration = func(uuid.UUID) {
		e.cache.afterGeneration = nil
		_, err := e.sales.Execute(ctx, actor, cashSale(session, "2", item(p, 1)))
		require.NoError(t, err)
	}
	_, err := e.catalog.Lookup(ctx, p.ID)
	require.NoError(t, err)

	_, ok := e.cache.Get(ctx, p.ID)
	assert.False(t, ok)

	got, err := e.catalog.Lookup(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	cached, ok := e.cache.Get(ctx, p.ID)
	require.True(t, ok)
	assert.Equal(t, 5, cached.Quantity)
}
