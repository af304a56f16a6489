package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	StockEntry  = "entrada"
	StockExit   = "saida"
	StockAdjust = "ajuste"
)

// StockMovement records every change to a product's quantity.
// Quantity is always positive; Sign carries the direction.
type StockMovement struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProductID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Kind        string     `gorm:"type:varchar(10);not null"` // entrada | saida | ajuste
	Sign        int        `gorm:"not null"`
	Quantity    int        `gorm:"not null"`
	StockBefore int        `gorm:"not null"`
	StockAfter  int        `gorm:"not null"`
	ActorID     uuid.UUID  `gorm:"type:uuid;not null"`
	Reason      string     `gorm:"not null"`
	SaleID      *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt   time.Time  `gorm:"not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (StockMovement) TableName() string { return "stock_movements" }

// Signed returns the quantity with its direction applied.
func (m StockMovement) Signed() int { return m.Sign * m.Quantity }
