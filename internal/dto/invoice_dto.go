package dto

import "github.com/shopspring/decimal"

type RecomputeInvoiceRequest struct {
	EmployeeID string `json:"employee_id" validate:"required,uuid"`
	MonthRef   string `json:"month_ref"   validate:"required"` // YYYY-MM
}

type InvoiceItemResponse struct {
	SaleID   string          `json:"sale_id"`
	SaleDate string          `json:"sale_date"`
	Amount   decimal.Decimal `json:"amount"`
}

type InvoiceResponse struct {
	ID           string                `json:"id"`
	EmployeeID   string                `json:"employee_id"`
	MonthRef     string                `json:"month_ref"`
	Total        decimal.Decimal       `json:"total"`
	RecomputedAt *string               `json:"recomputed_at"`
	Items        []InvoiceItemResponse `json:"items"`
}
