package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// PageQuery is bound from the query string of paginated list endpoints.
type PageQuery struct {
	Page  int `form:"page,default=1"    validate:"min=1"`
	Limit int `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreditRequest struct {
	Amount      decimal.Decimal `json:"amount"      validate:"required,gt=0"`
	Description string          `json:"description" validate:"required,min=3"`
}

type AdjustRequest struct {
	Amount      decimal.Decimal `json:"amount"      validate:"required,gt=0"`
	Sign        int             `json:"sign"        validate:"required,oneof=1 -1"`
	Description string          `json:"description" validate:"required,min=3"`
}

type ReverseRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovementResponse struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	Kind          string          `json:"kind"`
	Sign          int             `json:"sign"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	ActorID       string          `json:"actor_id"`
	SaleID        *string         `json:"sale_id"`
	ReversalOf    *string         `json:"reversal_of"`
	CreatedAt     string          `json:"created_at"`
}

type MovementListResponse struct {
	Data  []MovementResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

type BalanceResponse struct {
	AccountID  string           `json:"account_id"`
	Kind       string           `json:"kind"`
	Status     string           `json:"status"`
	Balance    decimal.Decimal  `json:"balance"`
	DailyLimit *decimal.Decimal `json:"daily_limit"`
	SpentToday decimal.Decimal  `json:"spent_today"`
}

type ReconcileResponse struct {
	AccountID  string          `json:"account_id"`
	Projection decimal.Decimal `json:"projection"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Consistent bool            `json:"consistent"`
}
