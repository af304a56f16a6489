package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice rolls up an employee's payroll sales for one month. Unlike the
// ledgers it is recomputable: items are rebuilt from scratch on every recompute.
type Invoice struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EmployeeID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_employee_month"`
	MonthRef     string          `gorm:"type:varchar(7);not null;uniqueIndex:idx_invoice_employee_month"` // YYYY-MM
	Total        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RecomputedAt *time.Time
	CreatedAt    time.Time

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID"`
}

func (Invoice) TableName() string { return "invoices" }

type InvoiceItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null"`
	SaleDate  time.Time       `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }
