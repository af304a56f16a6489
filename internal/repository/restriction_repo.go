package repository

import (
	"context"

	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RestrictionRepository interface {
	Create(ctx context.Context, rule *model.RestrictionRule) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RestrictionRule, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	// ListCandidates returns active rules of the account that target the
	// product itself or its type.
	ListCandidates(ctx context.Context, accountID, productID, productTypeID uuid.UUID) ([]model.RestrictionRule, error)
	ListCandidatesTx(tx *gorm.DB, accountID, productID, productTypeID uuid.UUID) ([]model.RestrictionRule, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, includeInactive bool) ([]model.RestrictionRule, error)
}

type restrictionRepo struct{ db *gorm.DB }

func NewRestrictionRepository(db *gorm.DB) RestrictionRepository { return &restrictionRepo{db: db} }

func (r *restrictionRepo) Create(ctx context.Context, rule *model.RestrictionRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *restrictionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.RestrictionRule, error) {
	var rule model.RestrictionRule
	err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error
	return &rule, err
}

func (r *restrictionRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.RestrictionRule{}).
		Where("id = ?", id).Update("active", false).Error
}

func (r *restrictionRepo) ListCandidates(ctx context.Context, accountID, productID, productTypeID uuid.UUID) ([]model.RestrictionRule, error) {
	return r.ListCandidatesTx(r.db.WithContext(ctx), accountID, productID, productTypeID)
}

func (r *restrictionRepo) ListCandidatesTx(tx *gorm.DB, accountID, productID, productTypeID uuid.UUID) ([]model.RestrictionRule, error) {
	var rules []model.RestrictionRule
	err := tx.
		Where("account_id = ? AND active = ?", accountID, true).
		Where("(scope = ? AND target_id = ?) OR (scope = ? AND target_id = ?)",
			model.ScopeProduct, productID, model.ScopeProductType, productTypeID).
		Find(&rules).Error
	return rules, err
}

func (r *restrictionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, includeInactive bool) ([]model.RestrictionRule, error) {
	q := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var rules []model.RestrictionRule
	err := q.Order("created_at DESC, id DESC").Find(&rules).Error
	return rules, err
}
