//go:build integration

package router_test

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/config"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/infra"
	"github.com/rmgimenez/php-cantina-sub001/internal/middleware"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"
	"github.com/rmgimenez/php-cantina-sub001/internal/router"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"
	"github.com/rmgimenez/php-cantina-sub001/internal/worker"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key"

// ── Helpers ──────────────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	db     *gorm.DB
	rdb    *redis.Client
	cfg    *config.Config
	token  string // manager JWT
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcPostgres.WithDatabase("canteen_test"),
		tcPostgres.WithUsername("canteen"),
		tcPostgres.WithPassword("canteen"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		DatabaseURL:        pgURL,
		DBMaxOpenConns:     20,
		RedisURL:           rdURL,
		JWTSecret:          testSecret,
		Timezone:           "America/Sao_Paulo",
		MaxRetries:         5,
		RetryBackoff:       10 * time.Millisecond,
		CatalogCacheTTL:    time.Hour,
		RateLimitPerMinute: 100000,
		WorkerPoolSize:     1,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	r, err := router.New(cfg, db, rdb)
	require.NoError(t, err)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, db: db, rdb: rdb, cfg: cfg, token: mintToken(t, middleware.RoleManager)}
}

func mintToken(t *testing.T, role string) string {
	t.Helper()
	claims := middleware.JWTClaims{
		UserID:   uuid.NewString(),
		Username: "e2e-" + role,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// seedProduct creates a controlled product and receives qty units through
// the stock API so the projection and the ledger agree.
func (e *testEnv) seedProduct(t *testing.T, name string, price string, qty int) uuid.UUID {
	t.Helper()
	pt := &model.ProductType{Name: "type-" + name}
	require.NoError(t, e.db.Create(pt).Error)
	p := &model.Product{Name: name, TypeID: pt.ID, Price: decimal.RequireFromString(price), Active: true, StockControlled: true, MinQuantity: 2}
	require.NoError(t, e.db.Create(p).Error)

	resp := e.do(t, http.MethodPost, "/v1/products/"+p.ID.String()+"/stock/entries",
		dto.StockEntryRequest{Quantity: qty, Reason: "initial count"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	return p.ID
}

func (e *testEnv) seedAccount(t *testing.T, kind string, funds string) uuid.UUID {
	t.Helper()
	acc := &model.Account{Kind: kind, Name: kind + " e2e", Status: model.AccountActive}
	require.NoError(t, e.db.Create(acc).Error)

	resp := e.do(t, http.MethodPost, "/v1/accounts/"+acc.ID.String()+"/credits",
		dto.CreditRequest{Amount: decimal.RequireFromString(funds), Description: "top-up"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	return acc.ID
}

func (e *testEnv) openSession(t *testing.T) string {
	t.Helper()
	reg := &model.CashRegister{Name: "counter-" + uuid.NewString()[:8], Active: true}
	require.NoError(t, e.db.Create(reg).Error)

	resp := e.do(t, http.MethodPost, "/v1/cash/sessions",
		dto.OpenSessionRequest{RegisterID: reg.ID.String(), OpeningBalance: decimal.NewFromInt(100)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var report dto.SessionReportResponse
	decodeJSON(t, resp, &report)
	return report.SessionID
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_StudentSaleCycle(t *testing.T) {
	env := setupTestEnv(t)

	productID := env.seedProduct(t, "Juice", "2.50", 10)
	studentID := env.seedAccount(t, model.AccountStudent, "20.00")
	sessionID := env.openSession(t)

	// Warm the catalog cache so the sale has to invalidate it.
	lookup := env.do(t, http.MethodGet, "/v1/products/"+productID.String(), nil)
	require.Equal(t, http.StatusOK, lookup.StatusCode)
	lookup.Body.Close()

	client := studentID.String()
	saleResp := env.do(t, http.MethodPost, "/v1/sales", dto.ExecuteSaleRequest{
		SessionID:     sessionID,
		ClientKind:    model.ClientStudent,
		ClientID:      &client,
		PaymentMethod: model.PaymentAccount,
		Items:         []dto.SaleItemRequest{{ProductID: productID.String(), Quantity: 2}},
	})
	require.Equal(t, http.StatusCreated, saleResp.StatusCode)
	var sale dto.SaleResponse
	decodeJSON(t, saleResp, &sale)
	assert.True(t, decimal.RequireFromString("5.00").Equal(sale.Total))

	var balance dto.BalanceResponse
	decodeJSON(t, env.do(t, http.MethodGet, "/v1/accounts/"+client+"/balance", nil), &balance)
	assert.True(t, decimal.RequireFromString("15.00").Equal(balance.Balance), balance.Balance.String())

	var product dto.ProductLookupResponse
	decodeJSON(t, env.do(t, http.MethodGet, "/v1/products/"+productID.String(), nil), &product)
	assert.Equal(t, 8, product.Quantity)

	var accRec dto.ReconcileResponse
	decodeJSON(t, env.do(t, http.MethodGet, "/v1/accounts/"+client+"/reconcile", nil), &accRec)
	assert.True(t, accRec.Consistent)

	// Account sales never touch the drawer.
	closeResp := env.do(t, http.MethodPost, "/v1/cash/sessions/"+sessionID+"/close",
		dto.CloseSessionRequest{Counted: dto.CountedAmounts{Total: decimal.NewFromInt(100)}})
	require.Equal(t, http.StatusOK, closeResp.StatusCode)
	var report dto.SessionReportResponse
	decodeJSON(t, closeResp, &report)
	assert.Equal(t, "closed", report.Status)
	require.NotNil(t, report.Difference)
	assert.Equal(t, service.DifferenceNormal, report.Difference.Classification)
	assert.True(t, decimal.RequireFromString("5.00").Equal(report.Totals.Account))
}

func TestE2E_ConcurrentSalesNeverOversell(t *testing.T) {
	env := setupTestEnv(t)

	productID := env.seedProduct(t, "Brownie", "4.00", 5)
	sessionID := env.openSession(t)

	const buyers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := env.do(t, http.MethodPost, "/v1/sales", dto.ExecuteSaleRequest{
				SessionID:     sessionID,
				ClientKind:    model.ClientCash,
				PaymentMethod: model.PaymentCard,
				Items:         []dto.SaleItemRequest{{ProductID: productID.String(), Quantity: 1}},
			})
			resp.Body.Close()
			mu.Lock()
			statuses[resp.StatusCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, statuses[http.StatusCreated])
	assert.Equal(t, buyers-5, statuses[http.StatusConflict])

	var rec dto.StockReconcileResponse
	decodeJSON(t, env.do(t, http.MethodGet, "/v1/products/"+productID.String()+"/stock/reconcile", nil), &rec)
	assert.Equal(t, 0, rec.Projection)
	assert.True(t, rec.Consistent)
}

func TestE2E_PayrollSaleRecomputesInvoiceInBackground(t *testing.T) {
	env := setupTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	loc, err := env.cfg.Location()
	require.NoError(t, err)
	invoiceSvc := service.NewInvoiceService(
		repository.NewInvoiceRepository(env.db),
		repository.NewSaleRepository(env.db),
		repository.NewAccountRepository(env.db),
		loc, service.UTCClock,
	)
	worker.StartWorkerPool(ctx, env.rdb, worker.RecomputeFunc(func(ctx context.Context, id uuid.UUID, month string) error {
		_, err := invoiceSvc.Recompute(ctx, id, month)
		return err
	}), 1)

	productID := env.seedProduct(t, "Coffee", "3.20", 20)
	employeeID := env.seedAccount(t, model.AccountEmployee, "50.00")
	sessionID := env.openSession(t)

	client := employeeID.String()
	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/v1/sales", dto.ExecuteSaleRequest{
			SessionID:     sessionID,
			ClientKind:    model.ClientEmployee,
			ClientID:      &client,
			PaymentMethod: model.PaymentPayroll,
			Items:         []dto.SaleItemRequest{{ProductID: productID.String(), Quantity: 1}},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	month := time.Now().In(loc).Format("2006-01")
	require.Eventually(t, func() bool {
		resp := env.do(t, http.MethodGet, "/v1/invoices/"+client+"/"+month, nil)
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return false
		}
		var inv dto.InvoiceResponse
		decodeJSON(t, resp, &inv)
		return len(inv.Items) == 2 && decimal.RequireFromString("6.40").Equal(inv.Total)
	}, 15*time.Second, 200*time.Millisecond)

	n, err := worker.DLQLength(ctx, env.rdb, worker.QueueInvoice)
	require.NoError(t, err)
	assert.Zero(t, n)
}
