package repository

import (
	"context"

	"github.com/rmgimenez/php-cantina-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MethodTotals holds the sum of active sale totals grouped by payment method.
type MethodTotals map[string]decimal.Decimal

// Total returns the sum over every method.
func (t MethodTotals) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t {
		sum = sum.Add(v)
	}
	return sum
}

type CashRepository interface {
	FindRegisterByID(ctx context.Context, id uuid.UUID) (*model.CashRegister, error)
	// LockRegisterTx serializes session opening on a register.
	LockRegisterTx(tx *gorm.DB, id uuid.UUID) (*model.CashRegister, error)
	FindOpenSessionTx(tx *gorm.DB, registerID uuid.UUID) (*model.CashSession, error)
	FindOpenSession(ctx context.Context, registerID uuid.UUID) (*model.CashSession, error)
	CreateSessionTx(tx *gorm.DB, s *model.CashSession) error
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	// LockSessionTx takes an exclusive lock; ShareLockSessionTx lets many
	// sales proceed on the same session while keeping Close out.
	LockSessionTx(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	ShareLockSessionTx(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	// CloseSessionTx writes the closing fields; it only matches an open row,
	// so a second close affects nothing.
	CloseSessionTx(tx *gorm.DB, s *model.CashSession) (int64, error)
	SumActiveSalesByMethodTx(tx *gorm.DB, sessionID uuid.UUID) (MethodTotals, error)
	SumActiveSalesByMethod(ctx context.Context, sessionID uuid.UUID) (MethodTotals, error)
	DB() *gorm.DB
}

type cashRepo struct{ db *gorm.DB }

func NewCashRepository(db *gorm.DB) CashRepository { return &cashRepo{db: db} }

func (r *cashRepo) DB() *gorm.DB { return r.db }

func (r *cashRepo) FindRegisterByID(ctx context.Context, id uuid.UUID) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := r.db.WithContext(ctx).First(&reg, "id = ?", id).Error
	return &reg, err
}

func (r *cashRepo) LockRegisterTx(tx *gorm.DB, id uuid.UUID) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := tx.Clauses(forUpdate).First(&reg, "id = ?", id).Error
	return &reg, err
}

func (r *cashRepo) FindOpenSessionTx(tx *gorm.DB, registerID uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := tx.Where("register_id = ? AND closed_at IS NULL", registerID).First(&s).Error
	return &s, err
}

func (r *cashRepo) FindOpenSession(ctx context.Context, registerID uuid.UUID) (*model.CashSession, error) {
	return r.FindOpenSessionTx(r.db.WithContext(ctx), registerID)
}

func (r *cashRepo) CreateSessionTx(tx *gorm.DB, s *model.CashSession) error {
	return tx.Create(s).Error
}

func (r *cashRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cashRepo) LockSessionTx(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := tx.Clauses(forUpdate).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cashRepo) ShareLockSessionTx(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := tx.Clauses(forShare).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cashRepo) CloseSessionTx(tx *gorm.DB, s *model.CashSession) (int64, error) {
	res := tx.Model(&model.CashSession{}).
		Where("id = ? AND closed_at IS NULL", s.ID).
		Updates(map[string]interface{}{
			"closing_balance":  s.ClosingBalance,
			"total_sales":      s.TotalSales,
			"total_cash":       s.TotalCash,
			"total_card":       s.TotalCard,
			"total_pix":        s.TotalPix,
			"total_account":    s.TotalAccount,
			"total_payroll":    s.TotalPayroll,
			"expected_cash":    s.ExpectedCash,
			"difference":       s.Difference,
			"difference_class": s.DifferenceClass,
			"notes":            s.Notes,
			"closed_by":        s.ClosedBy,
			"closed_at":        s.ClosedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *cashRepo) SumActiveSalesByMethodTx(tx *gorm.DB, sessionID uuid.UUID) (MethodTotals, error) {
	var rows []struct {
		PaymentMethod string
		Total         decimal.Decimal
	}
	err := tx.Model(&model.Sale{}).
		Select("payment_method, COALESCE(SUM(total), 0) AS total").
		Where("session_id = ? AND status = ?", sessionID, model.SaleActive).
		Group("payment_method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := MethodTotals{}
	for _, row := range rows {
		totals[row.PaymentMethod] = row.Total.Round(2)
	}
	return totals, nil
}

func (r *cashRepo) SumActiveSalesByMethod(ctx context.Context, sessionID uuid.UUID) (MethodTotals, error) {
	return r.SumActiveSalesByMethodTx(r.db.WithContext(ctx), sessionID)
}
