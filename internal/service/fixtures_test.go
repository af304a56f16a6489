package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/infra"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Clock ─────────────────────────────────────────────────────────────────────

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t.UTC()
}

// ── Fakes ─────────────────────────────────────────────────────────────────────

type fakeCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*dto.ProductLookupResponse
	generations map[uuid.UUID]int64
	invalidated []uuid.UUID
	// afterGeneration runs between a lookup's generation read and its
	// database read, to interleave a concurrent invalidation.
	afterGeneration func(id uuid.UUID)
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries:     make(map[uuid.UUID]*dto.ProductLookupResponse),
		generations: make(map[uuid.UUID]int64),
	}
}

func (c *fakeCache) Get(_ context.Context, id uuid.UUID) (*dto.ProductLookupResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[id]
	return p, ok
}

func (c *fakeCache) Generation(_ context.Context, id uuid.UUID) (int64, bool) {
	c.mu.Lock()
	gen, hook := c.generations[id], c.afterGeneration
	c.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return gen, true
}

func (c *fakeCache) Set(_ context.Context, p *dto.ProductLookupResponse, gen int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.MustParse(p.ID)
	if c.generations[id] != gen {
		return
	}
	c.entries[id] = p
}

func (c *fakeCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.generations[id]++
	c.invalidated = append(c.invalidated, id)
}

type scheduled struct {
	employeeID uuid.UUID
	monthRef   string
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduled
}

func (s *fakeScheduler) ScheduleRecompute(_ context.Context, employeeID uuid.UUID, monthRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduled{employeeID, monthRef})
	return nil
}

var (
	_ ProductCache     = (*fakeCache)(nil)
	_ InvoiceScheduler = (*fakeScheduler)(nil)
)

// ── Environment ───────────────────────────────────────────────────────────────

// Brasília time without DST, so tests do not depend on the tz database.
var testLoc = time.FixedZone("BRT", -3*60*60)

type testEnv struct {
	db    *gorm.DB
	clock *testClock
	cache *fakeCache
	sched *fakeScheduler

	ledger       *Ledger
	sales        SaleService
	cash         CashService
	accounts     LedgerService
	stock        StockService
	invoices     InvoiceService
	restrictions RestrictionService
	catalog      CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := infra.NewSQLite(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := &testClock{t: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)}
	cache := newFakeCache()
	sched := &fakeScheduler{}

	accountRepo := repository.NewAccountRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	productRepo := repository.NewProductRepository(db)
	stockRepo := repository.NewStockMovementRepository(db)
	cashRepo := repository.NewCashRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	ruleRepo := repository.NewRestrictionRepository(db)

	ledger := NewLedger(accountRepo, movementRepo, productRepo, stockRepo, clock.Now)
	return &testEnv{
		db:           db,
		clock:        clock,
		cache:        cache,
		sched:        sched,
		ledger:       ledger,
		sales:        NewSaleService(saleRepo, cashRepo, accountRepo, productRepo, ruleRepo, movementRepo, ledger, cache, sched, testLoc, clock.Now),
		cash:         NewCashService(cashRepo, clock.Now),
		accounts:     NewLedgerService(ledger, accountRepo, movementRepo, testLoc, clock.Now),
		stock:        NewStockService(ledger, productRepo, stockRepo, cache),
		invoices:     NewInvoiceService(invoiceRepo, saleRepo, accountRepo, testLoc, clock.Now),
		restrictions: NewRestrictionService(ruleRepo, accountRepo, productRepo, clock.Now),
		catalog:      NewCatalogService(productRepo, cache),
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var actor = uuid.MustParse("00000000-0000-4000-8000-000000000001")

// ── Seeds ─────────────────────────────────────────────────────────────────────

// seedAccount inserts an account and funds it through the ledger so the
// balance projection and the movement sum agree.
func (e *testEnv) seedAccount(t *testing.T, kind, balance string, limit *decimal.Decimal) *model.Account {
	t.Helper()
	acc := &model.Account{
		Kind:       kind,
		Name:       kind + " " + uuid.NewString()[:8],
		DailyLimit: limit,
		Status:     model.AccountActive,
	}
	require.NoError(t, e.db.Create(acc).Error)
	if b := d(balance); b.IsPositive() {
		_, err := e.accounts.Credit(context.Background(), actor, acc.ID, dto.CreditRequest{Amount: b, Description: "initial top-up"})
		require.NoError(t, err)
		acc.Balance = b
	}
	return acc
}

func (e *testEnv) seedStudent(t *testing.T, balance string, limit *decimal.Decimal) *model.Account {
	return e.seedAccount(t, model.AccountStudent, balance, limit)
}

func (e *testEnv) seedEmployee(t *testing.T) *model.Account {
	return e.seedAccount(t, model.AccountEmployee, "0", nil)
}

func (e *testEnv) seedType(t *testing.T, name string) *model.ProductType {
	t.Helper()
	pt := &model.ProductType{Name: name + " " + uuid.NewString()[:8]}
	require.NoError(t, e.db.Create(pt).Error)
	return pt
}

// seedProduct inserts an active product and receives qty units through the
// stock ledger.
func (e *testEnv) seedProduct(t *testing.T, typeID uuid.UUID, price string, qty int, controlled bool) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:            "product " + uuid.NewString()[:8],
		TypeID:          typeID,
		Price:           d(price),
		Active:          true,
		StockControlled: controlled,
		MinQuantity:     2,
	}
	require.NoError(t, e.db.Create(p).Error)
	if qty > 0 {
		_, err := e.stock.Receive(context.Background(), actor, p.ID, dto.StockEntryRequest{Quantity: qty, Reason: "initial stock"})
		require.NoError(t, err)
		p.Quantity = qty
	}
	return p
}

func (e *testEnv) seedRegister(t *testing.T) *model.CashRegister {
	t.Helper()
	reg := &model.CashRegister{Name: "register " + uuid.NewString()[:8], Active: true}
	require.NoError(t, e.db.Create(reg).Error)
	return reg
}

func (e *testEnv) openSession(t *testing.T, opening string) uuid.UUID {
	t.Helper()
	reg := e.seedRegister(t)
	resp, err := e.cash.Open(context.Background(), actor, dto.OpenSessionRequest{RegisterID: reg.ID.String(), OpeningBalance: d(opening)})
	require.NoError(t, err)
	return uuid.MustParse(resp.SessionID)
}

func (e *testEnv) reloadAccount(t *testing.T, id uuid.UUID) *model.Account {
	t.Helper()
	var acc model.Account
	require.NoError(t, e.db.First(&acc, "id = ?", id).Error)
	return &acc
}

func (e *testEnv) reloadProduct(t *testing.T, id uuid.UUID) *model.Product {
	t.Helper()
	var p model.Product
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return &p
}

func (e *testEnv) count(t *testing.T, m interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(m)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

// ── Request builders ──────────────────────────────────────────────────────────

func item(p *model.Product, qty int) dto.SaleItemRequest {
	return dto.SaleItemRequest{ProductID: p.ID.String(), Quantity: qty}
}

func studentSale(session uuid.UUID, acc *model.Account, items ...dto.SaleItemRequest) dto.ExecuteSaleRequest {
	id := acc.ID.String()
	return dto.ExecuteSaleRequest{
		SessionID:     session.String(),
		ClientKind:    model.ClientStudent,
		ClientID:      &id,
		PaymentMethod: model.PaymentAccount,
		Items:         items,
	}
}

func employeeSale(session uuid.UUID, acc *model.Account, items ...dto.SaleItemRequest) dto.ExecuteSaleRequest {
	id := acc.ID.String()
	return dto.ExecuteSaleRequest{
		SessionID:     session.String(),
		ClientKind:    model.ClientEmployee,
		ClientID:      &id,
		PaymentMethod: model.PaymentPayroll,
		Items:         items,
	}
}

func cashSale(session uuid.UUID, received string, items ...dto.SaleItemRequest) dto.ExecuteSaleRequest {
	r := d(received)
	return dto.ExecuteSaleRequest{
		SessionID:     session.String(),
		ClientKind:    model.ClientCash,
		PaymentMethod: model.PaymentCash,
		Received:      &r,
		Items:         items,
	}
}

func ptr[T any](v T) *T { return &v }
