package repository

import (
	"context"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SaleRepository interface {
	// CreateTx inserts the sale together with its items.
	CreateTx(tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error)
	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	CancelTx(tx *gorm.DB, id uuid.UUID, reason string, at time.Time) error
	// ListActiveEmployeeSalesTx returns the active sales of an employee in
	// [from, to), oldest first.
	ListActiveEmployeeSalesTx(tx *gorm.DB, employeeID uuid.UUID, from, to time.Time) ([]model.Sale, error)
	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) CreateTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line ASC") }).
		First(&s, "id = ?", id).Error
	return &s, err
}

func (r *saleRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line ASC") }).
		Where("idempotency_key = ?", key).First(&s).Error
	return &s, err
}

func (r *saleRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	if err := tx.Clauses(forUpdate).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	err := tx.Where("sale_id = ?", id).Order("line ASC").Find(&s.Items).Error
	return &s, err
}

func (r *saleRepo) CancelTx(tx *gorm.DB, id uuid.UUID, reason string, at time.Time) error {
	return tx.Model(&model.Sale{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.SaleCancelled,
		"cancel_reason": reason,
		"cancelled_at":  at,
	}).Error
}

func (r *saleRepo) ListActiveEmployeeSalesTx(tx *gorm.DB, employeeID uuid.UUID, from, to time.Time) ([]model.Sale, error) {
	var sales []model.Sale
	err := tx.Where("client_kind = ? AND client_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
		model.ClientEmployee, employeeID, model.SaleActive, from, to).
		Order("created_at ASC, id ASC").
		Find(&sales).Error
	return sales, err
}
