package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MovementCredit = "credit"
	MovementDebit  = "debit"
	MovementAdjust = "adjust"
)

// MovementEntry is an immutable event in an account's balance ledger.
// Amount is always positive; Sign carries the direction (+1 credit, -1 debit,
// either for adjust). Corrections are new entries with ReversalOf set.
type MovementEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AccountID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_movements_account_created,priority:1"`
	Kind          string          `gorm:"type:varchar(10);not null"`
	Sign          int             `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Description   string          `gorm:"not null"`
	ActorID       uuid.UUID       `gorm:"type:uuid;not null"`
	SaleID        *uuid.UUID      `gorm:"type:uuid;index"`
	ReversalOf    *uuid.UUID      `gorm:"type:uuid;uniqueIndex"`
	CreatedAt     time.Time       `gorm:"not null;index:idx_movements_account_created,priority:2"`
}

func (MovementEntry) TableName() string { return "movement_entries" }

// Signed returns the amount with its direction applied.
func (m MovementEntry) Signed() decimal.Decimal {
	if m.Sign < 0 {
		return m.Amount.Neg()
	}
	return m.Amount
}
