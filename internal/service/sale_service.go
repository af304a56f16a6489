package service

import (
	"context"
	"errors"
	"sort"
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

type SaleService interface {
	// Execute registers one point-of-sale operation. Validation, restriction,
	// balance, daily-limit and stock checks all happen before anything is
	// committed; any failure leaves no trace.
	Execute(ctx context.Context, actorID uuid.UUID, req dto.ExecuteSaleRequest) (*dto.SaleResponse, error)
	// Cancel flips an active sale to cancelled while its session is open and
	// appends the compensating balance and stock movements.
	Cancel(ctx context.Context, actorID, saleID uuid.UUID, req dto.CancelSaleRequest) (*dto.SaleResponse, error)
	Get(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error)
}

// InvoiceScheduler queues a background recompute of an employee's monthly
// invoice. Payroll sales and their cancellations notify it after commit.
type InvoiceScheduler interface {
	ScheduleRecompute(ctx context.Context, employeeID uuid.UUID, monthRef string) error
}

type saleService struct {
	sales     repository.SaleRepository
	cash      repository.CashRepository
	accounts  repository.AccountRepository
	products  repository.ProductRepository
	rules     repository.RestrictionRepository
	movements repository.MovementRepository
	ledger    *Ledger
	cache     ProductCache
	invoices  InvoiceScheduler
	loc       *time.Location
	now       Clock
}

func NewSaleService(
	sales repository.SaleRepository,
	cash repository.CashRepository,
	accounts repository.AccountRepository,
	products repository.ProductRepository,
	rules repository.RestrictionRepository,
	movements repository.MovementRepository,
	ledger *Ledger,
	cache ProductCache,
	invoices InvoiceScheduler,
	loc *time.Location,
	now Clock,
) SaleService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = UTCClock
	}
	return &saleService{
		sales:     sales,
		cash:      cash,
		accounts:  accounts,
		products:  products,
		rules:     rules,
		movements: movements,
		ledger:    ledger,
		cache:     cache,
		invoices:  invoices,
		loc:       loc,
		now:       now,
	}
}

// saleRequest is an ExecuteSaleRequest with ids parsed and rules checked.
type saleRequest struct {
	sessionID  uuid.UUID
	clientKind string
	clientID   *uuid.UUID
	method     string
	received   *decimal.Decimal
	lines      []saleLine
	key        *string
}

type saleLine struct {
	productID uuid.UUID
	quantity  int
}

// allowedMethods maps a client kind to the payment methods it may use.
var allowedMethods = map[string][]string{
	model.ClientStudent:  {model.PaymentAccount},
	model.ClientEmployee: {model.PaymentPayroll},
	model.ClientCash:     {model.PaymentCash, model.PaymentCard, model.PaymentPix},
}

func parseSaleRequest(req dto.ExecuteSaleRequest) (*saleRequest, error) {
	if len(req.Items) == 0 {
		return nil, apperror.Validation("a sale needs at least one item")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apperror.Validation("invalid session_id")
	}
	methods, ok := allowedMethods[req.ClientKind]
	if !ok {
		return nil, apperror.Validation("unknown client kind %q", req.ClientKind)
	}
	compatible := false
	for _, m := range methods {
		if m == req.PaymentMethod {
			compatible = true
			break
		}
	}
	if !compatible {
		return nil, apperror.Validation("payment method %q is not accepted for %s clients", req.PaymentMethod, req.ClientKind)
	}

	out := &saleRequest{sessionID: sessionID, clientKind: req.ClientKind, method: req.PaymentMethod}
	switch {
	case req.ClientKind == model.ClientCash && req.ClientID != nil:
		return nil, apperror.Validation("cash sales do not take a client_id")
	case req.ClientKind != model.ClientCash:
		if req.ClientID == nil {
			return nil, apperror.Validation("client_id is required for %s sales", req.ClientKind)
		}
		id, err := uuid.Parse(*req.ClientID)
		if err != nil {
			return nil, apperror.Validation("invalid client_id")
		}
		out.clientID = &id
	}

	if req.PaymentMethod == model.PaymentCash {
		if req.Received == nil {
			return nil, apperror.Validation("received amount is required for cash payments")
		}
		r := req.Received.Round(2)
		out.received = &r
	}

	for i, item := range req.Items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, apperror.Validation("invalid product_id").AtLine(i, uuid.Nil)
		}
		if item.Quantity <= 0 {
			return nil, apperror.Validation("quantity must be greater than zero").AtLine(i, pid)
		}
		if item.Quantity > MaxMovementQuantity {
			return nil, apperror.Validation("quantity must not exceed %d", MaxMovementQuantity).AtLine(i, pid)
		}
		out.lines = append(out.lines, saleLine{productID: pid, quantity: item.Quantity})
	}
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		k := *req.IdempotencyKey
		out.key = &k
	}
	return out, nil
}

func (s *saleService) Execute(ctx context.Context, actorID uuid.UUID, req dto.ExecuteSaleRequest) (*dto.SaleResponse, error) {
	in, err := parseSaleRequest(req)
	if err != nil {
		salesRejectedTotal.WithLabelValues(string(apperror.KindValidation)).Inc()
		return nil, err
	}

	if in.key != nil {
		if prev, err := s.sales.FindByIdempotencyKey(ctx, *in.key); err == nil {
			return replay(prev, in)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.FromDB(err, "sale")
		}
	}

	var sale *model.Sale
	err = runTx(ctx, s.sales.DB(), "sale", func(tx *gorm.DB) error {
		var err error
		sale, err = s.executeTx(tx, actorID, in)
		return err
	})
	if err != nil {
		// A concurrent request with the same key won the insert.
		if in.key != nil && apperror.IsUniqueViolation(err) {
			if prev, findErr := s.sales.FindByIdempotencyKey(ctx, *in.key); findErr == nil {
				return replay(prev, in)
			}
		}
		if kind := apperror.KindOf(err); kind != "" && kind != apperror.KindConcurrencyConflict {
			salesRejectedTotal.WithLabelValues(string(kind)).Inc()
		}
		return nil, err
	}

	salesTotal.WithLabelValues(sale.PaymentMethod).Inc()
	s.afterCommit(ctx, sale)
	log.Info().
		Str("sale_id", sale.ID.String()).
		Str("session_id", sale.SessionID.String()).
		Str("client_kind", sale.ClientKind).
		Str("payment_method", sale.PaymentMethod).
		Str("total", sale.Total.StringFixed(2)).
		Int("items", len(sale.Items)).
		Msg("sale committed")
	return saleToResponse(sale, false), nil
}

// executeTx runs inside the sale transaction. Locks are taken in the order
// session, account, products by id; Close takes the session first as well.
func (s *saleService) executeTx(tx *gorm.DB, actorID uuid.UUID, in *saleRequest) (*model.Sale, error) {
	session, err := s.cash.ShareLockSessionTx(tx, in.sessionID)
	if err != nil {
		return nil, apperror.FromDB(err, "cash session")
	}
	if !session.IsOpen() {
		return nil, apperror.SessionConflict("cash session %s is closed", session.ID)
	}

	var account *model.Account
	if in.clientID != nil {
		account, err = s.accounts.LockByIDTx(tx, *in.clientID)
		if err != nil {
			return nil, apperror.FromDB(err, "account")
		}
		if account.Kind != in.clientKind {
			return nil, apperror.Validation("account %s is not a %s account", account.ID, in.clientKind)
		}
		if account.Status == model.AccountBlocked {
			return nil, apperror.New(apperror.KindRestrictionDenied, "account %s is blocked", account.ID).
				WithNotes(account.Notes)
		}
	}

	products, err := s.products.LockByIDsTx(tx, distinctProductIDs(in.lines))
	if err != nil {
		return nil, apperror.FromDB(err, "product")
	}

	now := s.now()
	sale := &model.Sale{
		ClientKind:     in.clientKind,
		ClientID:       in.clientID,
		PaymentMethod:  in.method,
		SessionID:      session.ID,
		ActorID:        actorID,
		Status:         model.SaleActive,
		IdempotencyKey: in.key,
		CreatedAt:      now,
	}
	total := decimal.Zero
	for i, line := range in.lines {
		p, ok := products[line.productID]
		if !ok || !p.Active {
			return nil, apperror.NotFound("product %s not found or inactive", line.productID).AtLine(i, line.productID)
		}
		if account != nil {
			candidates, err := s.rules.ListCandidatesTx(tx, account.ID, p.ID, p.TypeID)
			if err != nil {
				return nil, apperror.FromDB(err, "restriction rule")
			}
			if d := resolveRules(candidates); !d.allowed {
				return nil, apperror.New(apperror.KindRestrictionDenied, "%s: %s", p.Name, *d.reason).
					AtLine(i, p.ID).WithNotes(account.Notes)
			}
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.quantity))).Round(2)
		total = total.Add(subtotal)
		sale.Items = append(sale.Items, model.SaleItem{
			Line:      i,
			ProductID: p.ID,
			Quantity:  line.quantity,
			UnitPrice: p.Price,
			Subtotal:  subtotal,
		})
	}
	sale.Total = total.Round(2)

	if in.clientKind == model.ClientStudent {
		if account.Balance.LessThan(sale.Total) {
			return nil, apperror.New(apperror.KindInsufficientFunds,
				"insufficient funds: balance %s, total %s", account.Balance.StringFixed(2), sale.Total.StringFixed(2))
		}
		if account.DailyLimit != nil {
			from, to := dayBounds(now, s.loc)
			spent, err := s.movements.SpentTx(tx, account.ID, from, to)
			if err != nil {
				return nil, apperror.FromDB(err, "account")
			}
			if spent.Add(sale.Total).GreaterThan(*account.DailyLimit) {
				return nil, apperror.New(apperror.KindDailyLimitExceeded,
					"daily limit %s exceeded: spent today %s, sale %s",
					account.DailyLimit.StringFixed(2), spent.StringFixed(2), sale.Total.StringFixed(2))
			}
		}
	}

	if in.method == model.PaymentCash {
		if in.received.LessThan(sale.Total) {
			return nil, apperror.Validation("received %s is less than total %s",
				in.received.StringFixed(2), sale.Total.StringFixed(2))
		}
		change := in.received.Sub(sale.Total)
		sale.Received = in.received
		sale.Change = &change
	}

	if err := s.sales.CreateTx(tx, sale); err != nil {
		return nil, err
	}

	if in.clientKind == model.ClientStudent && sale.Total.IsPositive() {
		_, err := s.ledger.AppendMovementTx(tx, MovementInput{
			AccountID:   account.ID,
			Kind:        model.MovementDebit,
			Sign:        -1,
			Amount:      sale.Total,
			Description: "sale " + sale.ID.String(),
			ActorID:     actorID,
			SaleID:      &sale.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	for _, item := range sale.Items {
		_, err := s.ledger.AppendStockMovementTx(tx, StockInput{
			ProductID: item.ProductID,
			Kind:      model.StockExit,
			Sign:      -1,
			Quantity:  item.Quantity,
			Reason:    "sale",
			ActorID:   actorID,
			SaleID:    &sale.ID,
		})
		if err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) && appErr.Line == nil {
				appErr.AtLine(item.Line, item.ProductID)
			}
			return nil, err
		}
	}
	return sale, nil
}

func (s *saleService) Cancel(ctx context.Context, actorID, saleID uuid.UUID, req dto.CancelSaleRequest) (*dto.SaleResponse, error) {
	var sale *model.Sale
	err := runTx(ctx, s.sales.DB(), "sale", func(tx *gorm.DB) error {
		var err error
		sale, err = s.sales.LockByIDTx(tx, saleID)
		if err != nil {
			return apperror.FromDB(err, "sale")
		}
		if sale.Status != model.SaleActive {
			return apperror.Validation("sale %s is already cancelled", sale.ID)
		}
		session, err := s.cash.ShareLockSessionTx(tx, sale.SessionID)
		if err != nil {
			return apperror.FromDB(err, "cash session")
		}
		if !session.IsOpen() {
			return apperror.SessionConflict("cash session %s is closed; the sale can no longer be cancelled", session.ID)
		}

		now := s.now()
		if err := s.sales.CancelTx(tx, sale.ID, req.Reason, now); err != nil {
			return err
		}

		if sale.ClientKind == model.ClientStudent {
			debit, err := s.movements.FindSaleDebitTx(tx, sale.ID)
			switch {
			case err == nil:
				if _, err := s.ledger.AppendMovementTx(tx, reversalOf(debit, actorID, req.Reason)); err != nil {
					return err
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return apperror.FromDB(err, "movement")
			}
		}

		items := append([]model.SaleItem(nil), sale.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID.String() < items[j].ProductID.String() })
		if _, err := s.products.LockByIDsTx(tx, distinctItemProductIDs(items)); err != nil {
			return apperror.FromDB(err, "product")
		}
		for _, item := range items {
			_, err := s.ledger.AppendStockMovementTx(tx, StockInput{
				ProductID: item.ProductID,
				Kind:      model.StockEntry,
				Sign:      1,
				Quantity:  item.Quantity,
				Reason:    "sale cancelled: " + req.Reason,
				ActorID:   actorID,
				SaleID:    &sale.ID,
			})
			if err != nil {
				return err
			}
		}

		reason := req.Reason
		sale.Status = model.SaleCancelled
		sale.CancelReason = &reason
		sale.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	salesCancelledTotal.Inc()
	s.afterCommit(ctx, sale)
	log.Info().
		Str("sale_id", sale.ID.String()).
		Str("actor_id", actorID.String()).
		Str("reason", req.Reason).
		Msg("sale cancelled")
	return saleToResponse(sale, false), nil
}

func (s *saleService) Get(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, apperror.FromDB(err, "sale")
	}
	return saleToResponse(sale, false), nil
}

// afterCommit drops cached catalog entries of the sold products and, for
// payroll sales, queues the invoice recompute. Both are best effort: the
// sale is already durable.
func (s *saleService) afterCommit(ctx context.Context, sale *model.Sale) {
	if s.cache != nil {
		for _, it := range sale.Items {
			s.cache.Invalidate(ctx, it.ProductID)
		}
	}
	if s.invoices == nil || sale.ClientKind != model.ClientEmployee || sale.ClientID == nil {
		return
	}
	month := sale.CreatedAt.In(s.loc).Format("2006-01")
	if err := s.invoices.ScheduleRecompute(ctx, *sale.ClientID, month); err != nil {
		log.Warn().Err(err).
			Str("sale_id", sale.ID.String()).
			Str("employee_id", sale.ClientID.String()).
			Str("month_ref", month).
			Msg("invoice recompute not scheduled")
	}
}

func distinctProductIDs(lines []saleLine) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if !seen[l.productID] {
			seen[l.productID] = true
			ids = append(ids, l.productID)
		}
	}
	return ids
}

func distinctItemProductIDs(items []model.SaleItem) []uuid.UUID {
	lines := make([]saleLine, len(items))
	for i, it := range items {
		lines[i] = saleLine{productID: it.ProductID, quantity: it.Quantity}
	}
	return distinctProductIDs(lines)
}

// replay answers a resent sale with the one already stored under its
// idempotency key. A key reused for a different sale is rejected, otherwise
// the POS would report a sale that was never charged.
func replay(prev *model.Sale, in *saleRequest) (*dto.SaleResponse, error) {
	if !sameSale(prev, in) {
		return nil, apperror.Validation("idempotency_key %q already used by sale %s with different contents", *in.key, prev.ID)
	}
	return saleToResponse(prev, true), nil
}

func sameSale(prev *model.Sale, in *saleRequest) bool {
	if prev.SessionID != in.sessionID || prev.ClientKind != in.clientKind || prev.PaymentMethod != in.method {
		return false
	}
	if (prev.ClientID == nil) != (in.clientID == nil) ||
		(prev.ClientID != nil && *prev.ClientID != *in.clientID) {
		return false
	}
	if len(prev.Items) != len(in.lines) {
		return false
	}
	for i, it := range prev.Items {
		if it.ProductID != in.lines[i].productID || it.Quantity != in.lines[i].quantity {
			return false
		}
	}
	return true
}

func saleToResponse(s *model.Sale, replayed bool) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:            s.ID.String(),
		SessionID:     s.SessionID.String(),
		ClientKind:    s.ClientKind,
		ClientID:      uuidString(s.ClientID),
		PaymentMethod: s.PaymentMethod,
		Total:         s.Total,
		Received:      s.Received,
		Change:        s.Change,
		Status:        s.Status,
		CancelReason:  s.CancelReason,
		Items:         make([]dto.SaleItemResponse, 0, len(s.Items)),
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
		Replayed:      replayed,
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, dto.SaleItemResponse{
			Line:      it.Line,
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return resp
}
