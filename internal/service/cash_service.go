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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DifferenceNormal   = "normal"
	DifferenceWarning  = "warning"
	DifferenceCritical = "critical"
)

type CashService interface {
	Open(ctx context.Context, actorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionReportResponse, error)
	// Close counts the drawer against the expected cash and persists the
	// closing figures once. A closed session cannot be closed again.
	Close(ctx context.Context, actorID, sessionID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionReportResponse, error)
	Report(ctx context.Context, sessionID uuid.UUID) (*dto.SessionReportResponse, error)
	Active(ctx context.Context, registerID uuid.UUID) (*dto.SessionReportResponse, error)
}

type cashService struct {
	repo repository.CashRepository
	now  Clock
}

func NewCashService(repo repository.CashRepository, now Clock) CashService {
	if now == nil {
		now = UTCClock
	}
	return &cashService{repo: repo, now: now}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *cashService) Open(ctx context.Context, actorID uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionReportResponse, error) {
	registerID, err := uuid.Parse(req.RegisterID)
	if err != nil {
		return nil, apperror.Validation("invalid register_id")
	}
	if req.OpeningBalance.IsNegative() {
		return nil, apperror.Validation("opening balance cannot be negative")
	}

	var session *model.CashSession
	err = runTx(ctx, s.repo.DB(), "cash register", func(tx *gorm.DB) error {
		reg, err := s.repo.LockRegisterTx(tx, registerID)
		if err != nil {
			return apperror.FromDB(err, "cash register")
		}
		if !reg.Active {
			return apperror.NotFound("cash register %s is not active", reg.ID)
		}
		if open, err := s.repo.FindOpenSessionTx(tx, registerID); err == nil {
			return apperror.SessionConflict("register %s already has open session %s", reg.ID, open.ID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.FromDB(err, "cash session")
		}

		session = &model.CashSession{
			RegisterID:     registerID,
			ActorID:        actorID,
			OpeningBalance: req.OpeningBalance.Round(2),
			OpenedAt:       s.now(),
		}
		if err := s.repo.CreateSessionTx(tx, session); err != nil {
			if apperror.IsUniqueViolation(err) {
				return apperror.SessionConflict("register %s already has an open session", reg.ID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("register_id", registerID.String()).
		Str("opening_balance", session.OpeningBalance.StringFixed(2)).
		Msg("cash session opened")
	return buildReport(session, repository.MethodTotals{}), nil
}

// ── Close ─────────────────────────────────────────────────────────────────────

func (s *cashService) Close(ctx context.Context, actorID, sessionID uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionReportResponse, error) {
	if req.Counted.Total.IsNegative() {
		return nil, apperror.Validation("counted total cannot be negative")
	}

	var (
		session *model.CashSession
		totals  repository.MethodTotals
	)
	err := runTx(ctx, s.repo.DB(), "cash session", func(tx *gorm.DB) error {
		var err error
		session, err = s.repo.LockSessionTx(tx, sessionID)
		if err != nil {
			return apperror.FromDB(err, "cash session")
		}
		if !session.IsOpen() {
			return apperror.SessionConflict("cash session %s is already closed", session.ID)
		}

		totals, err = s.repo.SumActiveSalesByMethodTx(tx, sessionID)
		if err != nil {
			return apperror.FromDB(err, "cash session")
		}

		counted := req.Counted.Total.Round(2)
		expected := expectedCash(session.OpeningBalance, totals)
		diff := counted.Sub(expected)
		class := ClassifyDifference(diff, expected)
		closedAt := s.now()

		by := totalsByMethod(totals)
		session.ClosingBalance = &counted
		session.TotalSales = &by.Total
		session.TotalCash = &by.Cash
		session.TotalCard = &by.Card
		session.TotalPix = &by.Pix
		session.TotalAccount = &by.Account
		session.TotalPayroll = &by.Payroll
		session.ExpectedCash = &expected
		session.Difference = &diff
		session.DifferenceClass = &class
		session.Notes = req.Notes
		session.ClosedBy = &actorID
		session.ClosedAt = &closedAt

		n, err := s.repo.CloseSessionTx(tx, session)
		if err != nil {
			return apperror.FromDB(err, "cash session")
		}
		if n == 0 {
			return apperror.SessionConflict("cash session %s is already closed", session.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := log.Info()
	if *session.DifferenceClass == DifferenceCritical {
		ev = log.Warn()
	}
	ev.Str("session_id", session.ID.String()).
		Str("expected_cash", session.ExpectedCash.StringFixed(2)).
		Str("counted", session.ClosingBalance.StringFixed(2)).
		Str("difference", session.Difference.StringFixed(2)).
		Str("classification", *session.DifferenceClass).
		Msg("cash session closed")
	return buildReport(session, totals), nil
}

// ── Report / Active ───────────────────────────────────────────────────────────

func (s *cashService) Report(ctx context.Context, sessionID uuid.UUID) (*dto.SessionReportResponse, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, apperror.FromDB(err, "cash session")
	}
	return s.report(ctx, session)
}

func (s *cashService) Active(ctx context.Context, registerID uuid.UUID) (*dto.SessionReportResponse, error) {
	if _, err := s.repo.FindRegisterByID(ctx, registerID); err != nil {
		return nil, apperror.FromDB(err, "cash register")
	}
	session, err := s.repo.FindOpenSession(ctx, registerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("register %s has no open session", registerID)
		}
		return nil, apperror.FromDB(err, "cash session")
	}
	return s.report(ctx, session)
}

func (s *cashService) report(ctx context.Context, session *model.CashSession) (*dto.SessionReportResponse, error) {
	totals, err := s.repo.SumActiveSalesByMethod(ctx, session.ID)
	if err != nil {
		return nil, apperror.FromDB(err, "cash session")
	}
	return buildReport(session, totals), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func expectedCash(opening decimal.Decimal, totals repository.MethodTotals) decimal.Decimal {
	return opening.Add(totals[model.PaymentCash]).Round(2)
}

// ClassifyDifference grades a cash-count difference relative to the expected
// amount: |diff| <= 1% normal, <= 5% warning, above that critical. With
// nothing expected any difference is critical.
func ClassifyDifference(diff, expected decimal.Decimal) string {
	if diff.IsZero() {
		return DifferenceNormal
	}
	if expected.IsZero() {
		return DifferenceCritical
	}
	pct := differencePercent(diff, expected).Abs()
	switch {
	case pct.LessThanOrEqual(decimal.NewFromInt(1)):
		return DifferenceNormal
	case pct.LessThanOrEqual(decimal.NewFromInt(5)):
		return DifferenceWarning
	default:
		return DifferenceCritical
	}
}

func differencePercent(diff, expected decimal.Decimal) decimal.Decimal {
	if expected.IsZero() {
		return decimal.Zero
	}
	return diff.Div(expected).Mul(decimal.NewFromInt(100)).Round(2)
}

func totalsByMethod(t repository.MethodTotals) dto.TotalsByMethod {
	return dto.TotalsByMethod{
		Cash:    t[model.PaymentCash].Round(2),
		Card:    t[model.PaymentCard].Round(2),
		Pix:     t[model.PaymentPix].Round(2),
		Account: t[model.PaymentAccount].Round(2),
		Payroll: t[model.PaymentPayroll].Round(2),
		Total:   t.Total().Round(2),
	}
}

func buildReport(session *model.CashSession, live repository.MethodTotals) *dto.SessionReportResponse {
	r := &dto.SessionReportResponse{
		SessionID:      session.ID.String(),
		RegisterID:     session.RegisterID.String(),
		ActorID:        session.ActorID.String(),
		OpeningBalance: session.OpeningBalance,
		Totals:         totalsByMethod(live),
		ExpectedCash:   expectedCash(session.OpeningBalance, live),
		Status:         "open",
		Notes:          session.Notes,
		OpenedAt:       session.OpenedAt.UTC().Format(time.RFC3339),
	}
	if session.IsOpen() {
		return r
	}

	// Closed sessions report the figures frozen at close.
	r.Status = "closed"
	r.ClosingBalance = session.ClosingBalance
	r.ClosedAt = timeString(session.ClosedAt)
	r.ClosedBy = uuidString(session.ClosedBy)
	r.Totals = dto.TotalsByMethod{
		Cash:    deref(session.TotalCash),
		Card:    deref(session.TotalCard),
		Pix:     deref(session.TotalPix),
		Account: deref(session.TotalAccount),
		Payroll: deref(session.TotalPayroll),
		Total:   deref(session.TotalSales),
	}
	r.ExpectedCash = deref(session.ExpectedCash)
	if session.Difference != nil && session.DifferenceClass != nil {
		r.Difference = &dto.DifferenceResponse{
			Amount:         *session.Difference,
			Percent:        differencePercent(*session.Difference, r.ExpectedCash),
			Classification: *session.DifferenceClass,
		}
	}
	return r
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
