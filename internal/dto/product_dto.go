package dto

import "github.com/shopspring/decimal"

// ProductLookupResponse is the public price-check payload; it is also the
// value stored in the catalog cache.
type ProductLookupResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	TypeID          string          `json:"type_id"`
	TypeName        string          `json:"type_name"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	StockControlled bool            `json:"stock_controlled"`
	Active          bool            `json:"active"`
}
