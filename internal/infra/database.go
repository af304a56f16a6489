package infra

import (
	"fmt"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Ledger timestamps are compared across rows; keep them all in UTC.
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// NewDatabase establishes a GORM connection backed by pgx and brings the
// schema up to date.
func NewDatabase(dsn string, maxOpenConns int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(5)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// NewSQLite opens a named in-memory SQLite database with the full schema.
// It backs the service tests: a single connection makes every transaction
// run serially, which is what the row locks achieve on PostgreSQL.
func NewSQLite(name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate for every ledger table, then applies the
// idempotent SQL patches that GORM tags cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Account{},
		&model.MovementEntry{},
		&model.ProductType{},
		&model.Product{},
		&model.StockMovement{},
		&model.CashRegister{},
		&model.CashSession{},
		&model.Sale{},
		&model.SaleItem{},
		&model.Invoice{},
		&model.InvoiceItem{},
		&model.RestrictionRule{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs DDL that both PostgreSQL and SQLite accept and
// that is safe to re-run.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one open session per register.
		{"one open session per register", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_sessions_one_open
    ON cash_sessions (register_id)
    WHERE closed_at IS NULL`},
		// Restriction lookups during a sale.
		{"restriction candidates index", `
CREATE INDEX IF NOT EXISTS idx_restriction_rules_lookup
    ON restriction_rules (account_id, scope, target_id)
    WHERE active`},
		// Close sums sales per session and method.
		{"sales by session index", `
CREATE INDEX IF NOT EXISTS idx_sales_session_status
    ON sales (session_id, status, payment_method)`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
