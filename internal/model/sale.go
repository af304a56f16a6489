package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ClientStudent  = "student"
	ClientEmployee = "employee"
	ClientCash     = "cash"

	PaymentCash    = "cash"
	PaymentCard    = "card"
	PaymentPix     = "pix"
	PaymentAccount = "account" // student prepaid balance
	PaymentPayroll = "payroll" // employee consumption, billed monthly

	SaleActive    = "active"
	SaleCancelled = "cancelled"
)

// Sale is a completed point-of-sale operation. Items are captured at sale time
// and never change; cancellation flips Status and writes compensating
// movements instead of touching the original ones.
type Sale struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ClientKind     string           `gorm:"type:varchar(10);not null"`
	ClientID       *uuid.UUID       `gorm:"type:uuid;index:idx_sales_client_created,priority:1"`
	Total          decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	PaymentMethod  string           `gorm:"type:varchar(10);not null"`
	Received       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Change         *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SessionID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	ActorID        uuid.UUID        `gorm:"type:uuid;not null"`
	Status         string           `gorm:"type:varchar(10);not null;default:'active'"`
	IdempotencyKey *string          `gorm:"type:varchar(64);uniqueIndex"`
	CancelReason   *string
	CancelledAt    *time.Time
	CreatedAt      time.Time `gorm:"not null;index:idx_sales_client_created,priority:2"`

	Items []SaleItem `gorm:"foreignKey:SaleID"`
}

func (Sale) TableName() string { return "sales" }

// SaleItem is one line of a sale with the price in force when it was sold.
type SaleItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Line      int             `gorm:"not null"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (SaleItem) TableName() string { return "sale_items" }
