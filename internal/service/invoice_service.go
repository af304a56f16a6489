package service

import (
	"context"
	"regexp"
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

var monthRefPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type InvoiceService interface {
	// Recompute rebuilds the employee's invoice for monthRef (YYYY-MM) from
	// the active sales of that month. Running it again with no new sales
	// yields the same invoice.
	Recompute(ctx context.Context, employeeID uuid.UUID, monthRef string) (*dto.InvoiceResponse, error)
	Get(ctx context.Context, employeeID uuid.UUID, monthRef string) (*dto.InvoiceResponse, error)
}

type invoiceService struct {
	invoices repository.InvoiceRepository
	sales    repository.SaleRepository
	accounts repository.AccountRepository
	loc      *time.Location
	now      Clock
}

func NewInvoiceService(
	invoices repository.InvoiceRepository,
	sales repository.SaleRepository,
	accounts repository.AccountRepository,
	loc *time.Location,
	now Clock,
) InvoiceService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = UTCClock
	}
	return &invoiceService{invoices: invoices, sales: sales, accounts: accounts, loc: loc, now: now}
}

// monthBounds parses YYYY-MM and returns the UTC instants delimiting that
// month in loc.
func monthBounds(monthRef string, loc *time.Location) (time.Time, time.Time, error) {
	if !monthRefPattern.MatchString(monthRef) {
		return time.Time{}, time.Time{}, apperror.Validation("month_ref must be YYYY-MM, got %q", monthRef)
	}
	start, err := time.ParseInLocation("2006-01", monthRef, loc)
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation("month_ref must be YYYY-MM, got %q", monthRef)
	}
	return start.UTC(), start.AddDate(0, 1, 0).UTC(), nil
}

func (s *invoiceService) Recompute(ctx context.Context, employeeID uuid.UUID, monthRef string) (*dto.InvoiceResponse, error) {
	from, to, err := monthBounds(monthRef, s.loc)
	if err != nil {
		return nil, err
	}
	acc, err := s.accounts.FindByID(ctx, employeeID)
	if err != nil {
		return nil, apperror.FromDB(err, "employee")
	}
	if acc.Kind != model.AccountEmployee {
		return nil, apperror.NotFound("employee %s not found", employeeID)
	}

	var (
		inv   *model.Invoice
		items []model.InvoiceItem
	)
	err = runTx(ctx, s.invoices.DB(), "invoice", func(tx *gorm.DB) error {
		var err error
		inv, err = s.invoices.EnsureTx(tx, employeeID, monthRef)
		if err != nil {
			return apperror.FromDB(err, "invoice")
		}
		sales, err := s.sales.ListActiveEmployeeSalesTx(tx, employeeID, from, to)
		if err != nil {
			return apperror.FromDB(err, "invoice")
		}

		items = make([]model.InvoiceItem, 0, len(sales))
		total := decimal.Zero
		for _, sale := range sales {
			items = append(items, model.InvoiceItem{
				SaleID:   sale.ID,
				SaleDate: sale.CreatedAt,
				Amount:   sale.Total,
			})
			total = total.Add(sale.Total)
		}
		if err := s.invoices.ReplaceItemsTx(tx, inv.ID, items); err != nil {
			return apperror.FromDB(err, "invoice")
		}

		now := s.now()
		inv.Total = total.Round(2)
		inv.RecomputedAt = &now
		return s.invoices.UpdateTotalTx(tx, inv.ID, inv.Total, now)
	})
	if err != nil {
		return nil, err
	}

	inv.Items = items
	log.Info().
		Str("employee_id", employeeID.String()).
		Str("month_ref", monthRef).
		Int("items", len(items)).
		Str("total", inv.Total.StringFixed(2)).
		Msg("invoice recomputed")
	return invoiceToResponse(inv), nil
}

func (s *invoiceService) Get(ctx context.Context, employeeID uuid.UUID, monthRef string) (*dto.InvoiceResponse, error) {
	if _, _, err := monthBounds(monthRef, s.loc); err != nil {
		return nil, err
	}
	inv, err := s.invoices.FindByEmployeeMonth(ctx, employeeID, monthRef)
	if err != nil {
		return nil, apperror.FromDB(err, "invoice")
	}
	return invoiceToResponse(inv), nil
}

func invoiceToResponse(inv *model.Invoice) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:           inv.ID.String(),
		EmployeeID:   inv.EmployeeID.String(),
		MonthRef:     inv.MonthRef,
		Total:        inv.Total,
		RecomputedAt: timeString(inv.RecomputedAt),
		Items:        make([]dto.InvoiceItemResponse, 0, len(inv.Items)),
	}
	for _, it := range inv.Items {
		resp.Items = append(resp.Items, dto.InvoiceItemResponse{
			SaleID:   it.SaleID.String(),
			SaleDate: it.SaleDate.UTC().Format(time.RFC3339),
			Amount:   it.Amount,
		})
	}
	return resp
}
