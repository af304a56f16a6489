package repository

import (
	"context"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceRepository interface {
	// EnsureTx inserts the (employee, month) invoice if it does not exist yet
	// and returns the row locked FOR UPDATE.
	EnsureTx(tx *gorm.DB, employeeID uuid.UUID, monthRef string) (*model.Invoice, error)
	ReplaceItemsTx(tx *gorm.DB, invoiceID uuid.UUID, items []model.InvoiceItem) error
	UpdateTotalTx(tx *gorm.DB, invoiceID uuid.UUID, total decimal.Decimal, at time.Time) error
	FindByEmployeeMonth(ctx context.Context, employeeID uuid.UUID, monthRef string) (*model.Invoice, error)
	DB() *gorm.DB
}

type invoiceRepo struct{ db *gorm.DB }

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository { return &invoiceRepo{db: db} }

func (r *invoiceRepo) DB() *gorm.DB { return r.db }

func (r *invoiceRepo) EnsureTx(tx *gorm.DB, employeeID uuid.UUID, monthRef string) (*model.Invoice, error) {
	fresh := model.Invoice{EmployeeID: employeeID, MonthRef: monthRef, Total: decimal.Zero}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "employee_id"}, {Name: "month_ref"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return nil, err
	}

	var inv model.Invoice
	err = tx.Clauses(forUpdate).
		Where("employee_id = ? AND month_ref = ?", employeeID, monthRef).
		First(&inv).Error
	return &inv, err
}

func (r *invoiceRepo) ReplaceItemsTx(tx *gorm.DB, invoiceID uuid.UUID, items []model.InvoiceItem) error {
	if err := tx.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
	}
	return tx.Create(&items).Error
}

func (r *invoiceRepo) UpdateTotalTx(tx *gorm.DB, invoiceID uuid.UUID, total decimal.Decimal, at time.Time) error {
	return tx.Model(&model.Invoice{}).Where("id = ?", invoiceID).Updates(map[string]interface{}{
		"total":         total,
		"recomputed_at": at,
	}).Error
}

func (r *invoiceRepo) FindByEmployeeMonth(ctx context.Context, employeeID uuid.UUID, monthRef string) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sale_date ASC, sale_id ASC") }).
		Where("employee_id = ? AND month_ref = ?", employeeID, monthRef).
		First(&inv).Error
	return &inv, err
}
