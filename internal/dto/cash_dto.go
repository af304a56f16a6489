package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	RegisterID     string          `json:"register_id"     validate:"required,uuid"`
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"min=0"`
}

type CountedAmounts struct {
	Total decimal.Decimal `json:"total" validate:"min=0"`
}

type CloseSessionRequest struct {
	Counted CountedAmounts `json:"counted" validate:"required"`
	Notes   *string        `json:"notes"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type TotalsByMethod struct {
	Cash    decimal.Decimal `json:"cash"`
	Card    decimal.Decimal `json:"card"`
	Pix     decimal.Decimal `json:"pix"`
	Account decimal.Decimal `json:"account"`
	Payroll decimal.Decimal `json:"payroll"`
	Total   decimal.Decimal `json:"total"`
}

type DifferenceResponse struct {
	Amount         decimal.Decimal `json:"amount"`
	Percent        decimal.Decimal `json:"percent"`
	Classification string          `json:"classification"` // normal | warning | critical
}

type SessionReportResponse struct {
	SessionID      string              `json:"session_id"`
	RegisterID     string              `json:"register_id"`
	ActorID        string              `json:"actor_id"`
	OpeningBalance decimal.Decimal     `json:"opening_balance"`
	Totals         TotalsByMethod      `json:"totals"`
	ExpectedCash   decimal.Decimal     `json:"expected_cash"`
	ClosingBalance *decimal.Decimal    `json:"closing_balance"`
	Difference     *DifferenceResponse `json:"difference"`
	Status         string              `json:"status"` // open | closed
	Notes          *string             `json:"notes"`
	OpenedAt       string              `json:"opened_at"`
	ClosedAt       *string             `json:"closed_at"`
	ClosedBy       *string             `json:"closed_by"`
}
