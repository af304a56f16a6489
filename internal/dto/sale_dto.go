package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SaleItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	// Quantity is checked by the sale service so the rejection names the line.
	Quantity int `json:"quantity"`
}

type ExecuteSaleRequest struct {
	SessionID     string            `json:"session_id"     validate:"required,uuid"`
	ClientKind    string            `json:"client_kind"    validate:"required,oneof=student employee cash"`
	ClientID      *string           `json:"client_id"      validate:"omitempty,uuid"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash card pix account payroll"`
	Received      *decimal.Decimal  `json:"received"`
	Items         []SaleItemRequest `json:"items"          validate:"required,min=1,dive"`
	// IdempotencyKey lets the POS resend a sale after a timeout without
	// charging twice.
	IdempotencyKey *string `json:"idempotency_key" validate:"omitempty,max=64"`
}

type CancelSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	Line      int             `json:"line"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	SessionID     string             `json:"session_id"`
	ClientKind    string             `json:"client_kind"`
	ClientID      *string            `json:"client_id"`
	PaymentMethod string             `json:"payment_method"`
	Total         decimal.Decimal    `json:"total"`
	Received      *decimal.Decimal   `json:"received"`
	Change        *decimal.Decimal   `json:"change"`
	Status        string             `json:"status"` // active | cancelled
	CancelReason  *string            `json:"cancel_reason,omitempty"`
	Items         []SaleItemResponse `json:"items"`
	CreatedAt     string             `json:"created_at"`
	// Replayed is true when the idempotency key matched an earlier sale.
	Replayed bool `json:"replayed"`
}
