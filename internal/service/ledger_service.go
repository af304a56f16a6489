package service

import (
	"context"
	"errors"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type LedgerService interface {
	Credit(ctx context.Context, actorID, accountID uuid.UUID, req dto.CreditRequest) (*dto.MovementResponse, error)
	Adjust(ctx context.Context, actorID, accountID uuid.UUID, req dto.AdjustRequest) (*dto.MovementResponse, error)
	// Reverse appends the opposite movement of movementID. A movement can be
	// reversed once and a reversal cannot itself be reversed.
	Reverse(ctx context.Context, actorID, movementID uuid.UUID, req dto.ReverseRequest) (*dto.MovementResponse, error)
	Balance(ctx context.Context, accountID uuid.UUID) (*dto.BalanceResponse, error)
	ListMovements(ctx context.Context, accountID uuid.UUID, q dto.PageQuery) (*dto.MovementListResponse, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (*dto.ReconcileResponse, error)
}

type ledgerService struct {
	ledger    *Ledger
	accounts  repository.AccountRepository
	movements repository.MovementRepository
	loc       *time.Location
	now       Clock
}

func NewLedgerService(
	ledger *Ledger,
	accounts repository.AccountRepository,
	movements repository.MovementRepository,
	loc *time.Location,
	now Clock,
) LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = UTCClock
	}
	return &ledgerService{ledger: ledger, accounts: accounts, movements: movements, loc: loc, now: now}
}

func (s *ledgerService) Credit(ctx context.Context, actorID, accountID uuid.UUID, req dto.CreditRequest) (*dto.MovementResponse, error) {
	return s.append(ctx, MovementInput{
		AccountID:   accountID,
		Kind:        model.MovementCredit,
		Sign:        1,
		Amount:      req.Amount,
		Description: req.Description,
		ActorID:     actorID,
	})
}

func (s *ledgerService) Adjust(ctx context.Context, actorID, accountID uuid.UUID, req dto.AdjustRequest) (*dto.MovementResponse, error) {
	return s.append(ctx, MovementInput{
		AccountID:   accountID,
		Kind:        model.MovementAdjust,
		Sign:        req.Sign,
		Amount:      req.Amount,
		Description: req.Description,
		ActorID:     actorID,
	})
}

func (s *ledgerService) append(ctx context.Context, in MovementInput) (*dto.MovementResponse, error) {
	var entry *model.MovementEntry
	err := runTx(ctx, s.accounts.DB(), "account", func(tx *gorm.DB) error {
		var err error
		entry, err = s.ledger.AppendMovementTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("account_id", in.AccountID.String()).
		Str("kind", in.Kind).
		Str("amount", entry.Amount.StringFixed(2)).
		Str("balance_after", entry.BalanceAfter.StringFixed(2)).
		Msg("movement appended")
	return movementToResponse(entry), nil
}

func (s *ledgerService) Reverse(ctx context.Context, actorID, movementID uuid.UUID, req dto.ReverseRequest) (*dto.MovementResponse, error) {
	var entry *model.MovementEntry
	err := runTx(ctx, s.accounts.DB(), "movement", func(tx *gorm.DB) error {
		orig, err := s.movements.FindByIDTx(tx, movementID)
		if err != nil {
			return apperror.FromDB(err, "movement")
		}
		if orig.ReversalOf != nil {
			return apperror.Validation("movement %s is a reversal and cannot be reversed", orig.ID)
		}
		// The sale owns its movements; cancelling it restores balance and stock together.
		if orig.SaleID != nil {
			return apperror.Validation("movement %s belongs to sale %s: sale movements are reversed by cancelling the sale", orig.ID, *orig.SaleID)
		}
		if _, err := s.movements.FindReversalTx(tx, orig.ID); err == nil {
			return apperror.Validation("movement %s was already reversed", orig.ID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.FromDB(err, "movement")
		}

		entry, err = s.ledger.AppendMovementTx(tx, reversalOf(orig, actorID, req.Reason))
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("movement_id", movementID.String()).
		Str("reversal_id", entry.ID.String()).
		Msg("movement reversed")
	return movementToResponse(entry), nil
}

// reversalOf builds the movement that cancels orig: same amount, opposite
// direction. Credits and debits swap kind; adjustments stay adjustments.
func reversalOf(orig *model.MovementEntry, actorID uuid.UUID, reason string) MovementInput {
	kind := model.MovementAdjust
	switch orig.Kind {
	case model.MovementCredit:
		kind = model.MovementDebit
	case model.MovementDebit:
		kind = model.MovementCredit
	}
	id := orig.ID
	return MovementInput{
		AccountID:   orig.AccountID,
		Kind:        kind,
		Sign:        -orig.Sign,
		Amount:      orig.Amount,
		Description: "reversal: " + reason,
		ActorID:     actorID,
		SaleID:      orig.SaleID,
		ReversalOf:  &id,
	}
}

func (s *ledgerService) Balance(ctx context.Context, accountID uuid.UUID) (*dto.BalanceResponse, error) {
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	from, to := dayBounds(s.now(), s.loc)
	spent, err := s.movements.SpentTx(s.accounts.DB().WithContext(ctx), accountID, from, to)
	if err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	return &dto.BalanceResponse{
		AccountID:  acc.ID.String(),
		Kind:       acc.Kind,
		Status:     acc.Status,
		Balance:    acc.Balance,
		DailyLimit: acc.DailyLimit,
		SpentToday: spent,
	}, nil
}

func (s *ledgerService) ListMovements(ctx context.Context, accountID uuid.UUID, q dto.PageQuery) (*dto.MovementListResponse, error) {
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	movs, total, err := s.movements.List(ctx, accountID, q.Page, q.Limit)
	if err != nil {
		return nil, err
	}
	resp := &dto.MovementListResponse{Data: make([]dto.MovementResponse, 0, len(movs)), Total: total, Page: q.Page, Limit: q.Limit}
	for i := range movs {
		resp.Data = append(resp.Data, *movementToResponse(&movs[i]))
	}
	return resp, nil
}

func (s *ledgerService) Reconcile(ctx context.Context, accountID uuid.UUID) (*dto.ReconcileResponse, error) {
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	sum, err := s.movements.SignedSum(ctx, accountID)
	if err != nil {
		return nil, err
	}
	consistent := sum.Equal(acc.Balance)
	if !consistent {
		log.Error().
			Str("account_id", accountID.String()).
			Str("projection", acc.Balance.StringFixed(2)).
			Str("ledger_sum", sum.StringFixed(2)).
			Msg("balance projection drift")
	}
	return &dto.ReconcileResponse{
		AccountID:  accountID.String(),
		Projection: acc.Balance,
		LedgerSum:  sum,
		Consistent: consistent,
	}, nil
}

// dayBounds returns the UTC instants delimiting the calendar day of now in loc.
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

func movementToResponse(m *model.MovementEntry) *dto.MovementResponse {
	return &dto.MovementResponse{
		ID:            m.ID.String(),
		AccountID:     m.AccountID.String(),
		Kind:          m.Kind,
		Sign:          m.Sign,
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Description:   m.Description,
		ActorID:       m.ActorID.String(),
		SaleID:        uuidString(m.SaleID),
		ReversalOf:    uuidString(m.ReversalOf),
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
