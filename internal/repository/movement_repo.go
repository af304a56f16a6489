package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementRepository is the append-only store of account movements.
// There is deliberately no Update or Delete.
type MovementRepository interface {
	CreateTx(tx *gorm.DB, m *model.MovementEntry) error
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.MovementEntry, error)
	FindReversalTx(tx *gorm.DB, originalID uuid.UUID) (*model.MovementEntry, error)
	FindSaleDebitTx(tx *gorm.DB, saleID uuid.UUID) (*model.MovementEntry, error)
	// SpentTx returns debits in [from, to) minus reversals of those debits.
	SpentTx(tx *gorm.DB, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	SignedSum(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	List(ctx context.Context, accountID uuid.UUID, page, limit int) ([]model.MovementEntry, int64, error)
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepository(db *gorm.DB) MovementRepository { return &movementRepo{db: db} }

func (r *movementRepo) CreateTx(tx *gorm.DB, m *model.MovementEntry) error {
	return tx.Create(m).Error
}

func (r *movementRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.MovementEntry, error) {
	var m model.MovementEntry
	err := tx.First(&m, "id = ?", id).Error
	return &m, err
}

func (r *movementRepo) FindReversalTx(tx *gorm.DB, originalID uuid.UUID) (*model.MovementEntry, error) {
	var m model.MovementEntry
	err := tx.Where("reversal_of = ?", originalID).First(&m).Error
	return &m, err
}

func (r *movementRepo) FindSaleDebitTx(tx *gorm.DB, saleID uuid.UUID) (*model.MovementEntry, error) {
	var m model.MovementEntry
	err := tx.Where("sale_id = ? AND kind = ? AND reversal_of IS NULL", saleID, model.MovementDebit).First(&m).Error
	return &m, err
}

func (r *movementRepo) SpentTx(tx *gorm.DB, accountID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var spent decimal.Decimal
	err := tx.Raw(`
		SELECT COALESCE(SUM(CASE WHEN kind = @debit THEN amount ELSE -amount END), 0)
		FROM movement_entries
		WHERE account_id = @account AND created_at >= @from AND created_at < @to
		  AND (kind = @debit OR reversal_of IN (
		        SELECT id FROM movement_entries
		        WHERE account_id = @account AND kind = @debit
		          AND created_at >= @from AND created_at < @to))`,
		sql.Named("debit", model.MovementDebit),
		sql.Named("account", accountID),
		sql.Named("from", from),
		sql.Named("to", to),
	).Row().Scan(&spent)
	return spent.Round(2), err
}

func (r *movementRepo) SignedSum(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.MovementEntry{}).
		Select("COALESCE(SUM(CASE WHEN sign > 0 THEN amount ELSE -amount END), 0)").
		Where("account_id = ?", accountID).
		Row().Scan(&sum)
	return sum.Round(2), err
}

func (r *movementRepo) List(ctx context.Context, accountID uuid.UUID, page, limit int) ([]model.MovementEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.MovementEntry{}).Where("account_id = ?", accountID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := pageOffset(page, limit)

	var movs []model.MovementEntry
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&movs).Error
	return movs, total, err
}
