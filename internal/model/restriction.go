package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ScopeProduct     = "product"
	ScopeProductType = "product_type"
)

// RestrictionRule allows or denies an account purchasing a product or any
// product of a type. Rules are deactivated, never deleted.
type RestrictionRule struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index"`
	Scope     string    `gorm:"type:varchar(20);not null"` // product | product_type
	TargetID  uuid.UUID `gorm:"type:uuid;not null"`
	Permitted bool      `gorm:"not null"`
	Active    bool      `gorm:"not null"`
	Reason    *string
	CreatedAt time.Time `gorm:"not null"`
}

func (RestrictionRule) TableName() string { return "restriction_rules" }
