package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID gives a row its primary key on the application side so the same
// models work on PostgreSQL and on the SQLite test store.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (a *Account) BeforeCreate(*gorm.DB) error         { assignID(&a.ID); return nil }
func (m *MovementEntry) BeforeCreate(*gorm.DB) error   { assignID(&m.ID); return nil }
func (p *ProductType) BeforeCreate(*gorm.DB) error     { assignID(&p.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error         { assignID(&p.ID); return nil }
func (m *StockMovement) BeforeCreate(*gorm.DB) error   { assignID(&m.ID); return nil }
func (r *CashRegister) BeforeCreate(*gorm.DB) error    { assignID(&r.ID); return nil }
func (s *CashSession) BeforeCreate(*gorm.DB) error     { assignID(&s.ID); return nil }
func (s *Sale) BeforeCreate(*gorm.DB) error            { assignID(&s.ID); return nil }
func (i *SaleItem) BeforeCreate(*gorm.DB) error        { assignID(&i.ID); return nil }
func (i *Invoice) BeforeCreate(*gorm.DB) error         { assignID(&i.ID); return nil }
func (i *InvoiceItem) BeforeCreate(*gorm.DB) error     { assignID(&i.ID); return nil }
func (r *RestrictionRule) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }
