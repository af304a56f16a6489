package repository

import (
	"context"

	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountRepository reads accounts owned by the identity subsystem and writes
// the balance projection. It never creates accounts.
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// LockByIDTx selects the account FOR UPDATE inside tx.
	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Account, error)
	UpdateBalanceTx(tx *gorm.DB, id uuid.UUID, balance decimal.Decimal) error
	DB() *gorm.DB
}

type accountRepo struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepo{db: db} }

func (r *accountRepo) DB() *gorm.DB { return r.db }

func (r *accountRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	return &a, err
}

func (r *accountRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Account, error) {
	var a model.Account
	err := tx.Clauses(forUpdate).First(&a, "id = ?", id).Error
	return &a, err
}

func (r *accountRepo) UpdateBalanceTx(tx *gorm.DB, id uuid.UUID, balance decimal.Decimal) error {
	return tx.Model(&model.Account{}).Where("id = ?", id).Update("balance", balance).Error
}
