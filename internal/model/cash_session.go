package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashRegister is a physical point of sale.
type CashRegister struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time
}

func (CashRegister) TableName() string { return "cash_registers" }

// CashSession is one open-to-close shift on a register.
// Every closing field is nil while the session is open and is written exactly
// once by Close. A partial unique index on register_id WHERE closed_at IS NULL
// backs the one-open-session-per-register rule.
type CashSession struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RegisterID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ActorID        uuid.UUID       `gorm:"type:uuid;not null"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	OpenedAt       time.Time       `gorm:"not null"`

	ClosingBalance *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalSales     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalCash      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalCard      *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalPix       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalAccount   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalPayroll   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ExpectedCash   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Difference     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// DifferenceClass: normal | warning | critical
	DifferenceClass *string    `gorm:"type:varchar(10)"`
	Notes           *string
	ClosedBy        *uuid.UUID `gorm:"type:uuid"`
	ClosedAt        *time.Time

	Register *CashRegister `gorm:"foreignKey:RegisterID"`
}

func (CashSession) TableName() string { return "cash_sessions" }

func (s *CashSession) IsOpen() bool { return s.ClosedAt == nil }
