package service

import (
	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementInput describes one balance-affecting event.
type MovementInput struct {
	AccountID   uuid.UUID
	Kind        string // credit | debit | adjust
	Sign        int
	Amount      decimal.Decimal
	Description string
	ActorID     uuid.UUID
	SaleID      *uuid.UUID
	ReversalOf  *uuid.UUID
}

// StockInput describes one quantity-affecting event.
type StockInput struct {
	ProductID uuid.UUID
	Kind      string // entrada | saida | ajuste
	Sign      int
	Quantity  int
	Reason    string
	ActorID   uuid.UUID
	SaleID    *uuid.UUID
}

// Ledger appends movements and keeps the balance and stock projections in
// step with them. Both append methods must run inside the caller's
// transaction; the projection update commits or rolls back with the entry.
type Ledger struct {
	accounts  repository.AccountRepository
	movements repository.MovementRepository
	products  repository.ProductRepository
	stock     repository.StockMovementRepository
	now       Clock
}

func NewLedger(
	accounts repository.AccountRepository,
	movements repository.MovementRepository,
	products repository.ProductRepository,
	stock repository.StockMovementRepository,
	now Clock,
) *Ledger {
	if now == nil {
		now = UTCClock
	}
	return &Ledger{accounts: accounts, movements: movements, products: products, stock: stock, now: now}
}

// AppendMovementTx locks the account, projects its new balance and writes
// the entry with before/after snapshots. Nothing is written when the
// projection is rejected.
func (l *Ledger) AppendMovementTx(tx *gorm.DB, in MovementInput) (*model.MovementEntry, error) {
	if err := checkMovementSign(in.Kind, in.Sign); err != nil {
		return nil, err
	}
	acc, err := l.accounts.LockByIDTx(tx, in.AccountID)
	if err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	next, err := ProjectBalance(acc.Balance, in.Sign, in.Amount)
	if err != nil {
		return nil, err
	}

	entry := &model.MovementEntry{
		AccountID:     in.AccountID,
		Kind:          in.Kind,
		Sign:          in.Sign,
		Amount:        in.Amount.Round(2),
		BalanceBefore: acc.Balance,
		BalanceAfter:  next,
		Description:   in.Description,
		ActorID:       in.ActorID,
		SaleID:        in.SaleID,
		ReversalOf:    in.ReversalOf,
		CreatedAt:     l.now(),
	}
	if err := l.movements.CreateTx(tx, entry); err != nil {
		if in.ReversalOf != nil && apperror.IsUniqueViolation(err) {
			return nil, apperror.Validation("movement %s was already reversed", *in.ReversalOf)
		}
		return nil, apperror.FromDB(err, "movement")
	}
	if err := l.accounts.UpdateBalanceTx(tx, in.AccountID, next); err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	return entry, nil
}

// AppendStockMovementTx is the stock counterpart of AppendMovementTx.
func (l *Ledger) AppendStockMovementTx(tx *gorm.DB, in StockInput) (*model.StockMovement, error) {
	if err := checkStockSign(in.Kind, in.Sign); err != nil {
		return nil, err
	}
	p, err := l.products.LockByIDTx(tx, in.ProductID)
	if err != nil {
		return nil, apperror.FromDB(err, "product")
	}
	next, err := ProjectStock(p.Quantity, in.Sign, in.Quantity, p.StockControlled)
	if err != nil {
		return nil, err
	}

	mov := &model.StockMovement{
		ProductID:   in.ProductID,
		Kind:        in.Kind,
		Sign:        in.Sign,
		Quantity:    in.Quantity,
		StockBefore: p.Quantity,
		StockAfter:  next,
		ActorID:     in.ActorID,
		Reason:      in.Reason,
		SaleID:      in.SaleID,
		CreatedAt:   l.now(),
	}
	if err := l.stock.CreateTx(tx, mov); err != nil {
		return nil, apperror.FromDB(err, "stock movement")
	}
	if err := l.products.UpdateQuantityTx(tx, in.ProductID, next); err != nil {
		return nil, apperror.FromDB(err, "product")
	}
	return mov, nil
}

func checkMovementSign(kind string, sign int) error {
	switch kind {
	case model.MovementCredit:
		if sign != 1 {
			return apperror.Validation("credit movements have sign +1")
		}
	case model.MovementDebit:
		if sign != -1 {
			return apperror.Validation("debit movements have sign -1")
		}
	case model.MovementAdjust:
	default:
		return apperror.Validation("unknown movement kind %q", kind)
	}
	return nil
}

func checkStockSign(kind string, sign int) error {
	switch kind {
	case model.StockEntry:
		if sign != 1 {
			return apperror.Validation("stock entries have sign +1")
		}
	case model.StockExit:
		if sign != -1 {
			return apperror.Validation("stock exits have sign -1")
		}
	case model.StockAdjust:
	default:
		return apperror.Validation("unknown stock movement kind %q", kind)
	}
	return nil
}
