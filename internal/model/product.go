package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductType is the category a product belongs to (reference data).
type ProductType struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

func (ProductType) TableName() string { return "product_types" }

// Product carries the catalog fields read at sale time and the stock
// projection maintained by the stock ledger.
type Product struct {
	ID     uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name   string          `gorm:"index;not null"`
	TypeID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Price  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Active bool            `gorm:"not null"`
	// Quantity is a projection of stock_movements, written only by the ledger.
	Quantity        int  `gorm:"not null;default:0"`
	MinQuantity     int  `gorm:"not null;default:0"`
	StockControlled bool `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Type *ProductType `gorm:"foreignKey:TypeID"`
}

func (Product) TableName() string { return "products" }
