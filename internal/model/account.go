package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AccountStudent  = "student"
	AccountEmployee = "employee"

	AccountActive  = "active"
	AccountBlocked = "blocked"
)

// Account is a prepaid balance holder. Rows are created by the identity
// subsystem; the ledger only locks them and maintains Balance.
type Account struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind string    `gorm:"type:varchar(20);not null"` // student | employee
	Name string    `gorm:"not null"`
	// DailyLimit caps the sum of debits per calendar day; nil = unlimited.
	DailyLimit *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Status     string           `gorm:"type:varchar(20);not null;default:'active'"`
	// Balance is a projection of movement_entries, written only by the ledger.
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Account) TableName() string { return "accounts" }
