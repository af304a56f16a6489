package repository

import (
	"context"

	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductRepository is the catalog collaborator plus the stock projection.
// Services depend on this interface, not on the concrete GORM implementation.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindTypeByID(ctx context.Context, id uuid.UUID) (*model.ProductType, error)
	// LockByIDsTx selects the given products FOR UPDATE in id order so that
	// concurrent sales touching overlapping products acquire locks in the same
	// sequence.
	LockByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error)
	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	UpdateQuantityTx(tx *gorm.DB, id uuid.UUID, quantity int) error
	ListLowStock(ctx context.Context) ([]model.Product, error)
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Preload("Type").First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) FindTypeByID(ctx context.Context, id uuid.UUID) (*model.ProductType, error) {
	var t model.ProductType
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	return &t, err
}

func (r *productRepo) LockByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	var products []model.Product
	if err := tx.Clauses(forUpdate).Where("id IN ?", ids).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID, nil
}

func (r *productRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := tx.Clauses(forUpdate).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) UpdateQuantityTx(tx *gorm.DB, id uuid.UUID, quantity int) error {
	return tx.Model(&model.Product{}).Where("id = ?", id).Update("quantity", quantity).Error
}

func (r *productRepo) ListLowStock(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("active = ? AND stock_controlled = ? AND quantity <= min_quantity", true, true).
		Order("quantity ASC, name ASC").
		Find(&products).Error
	return products, err
}
