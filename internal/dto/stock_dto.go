package dto

// StockMovementFilter is bound from the query string of
// GET /v1/products/:id/stock/movements.
type StockMovementFilter struct {
	Kind  string `form:"kind"              validate:"omitempty,oneof=entrada saida ajuste"`
	Page  int    `form:"page,default=1"    validate:"min=1"`
	Limit int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type StockEntryRequest struct {
	Quantity int    `json:"quantity" validate:"required,min=1,max=1000000"`
	Reason   string `json:"reason"   validate:"required,min=3"`
}

type StockAdjustRequest struct {
	Quantity int    `json:"quantity" validate:"required,min=1,max=1000000"`
	Sign     int    `json:"sign"     validate:"required,oneof=1 -1"`
	Reason   string `json:"reason"   validate:"required,min=3"`
}

type StockMovementResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	Kind        string  `json:"kind"`
	Sign        int     `json:"sign"`
	Quantity    int     `json:"quantity"`
	StockBefore int     `json:"stock_before"`
	StockAfter  int     `json:"stock_after"`
	ActorID     string  `json:"actor_id"`
	Reason      string  `json:"reason"`
	SaleID      *string `json:"sale_id"`
	CreatedAt   string  `json:"created_at"`
}

type StockMovementListResponse struct {
	Data  []StockMovementResponse `json:"data"`
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}

type StockReconcileResponse struct {
	ProductID  string `json:"product_id"`
	Projection int    `json:"projection"`
	LedgerSum  int    `json:"ledger_sum"`
	Consistent bool   `json:"consistent"`
}

type LowStockItem struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	MinQuantity int    `json:"min_quantity"`
	Shortfall   int    `json:"shortfall"`
}
