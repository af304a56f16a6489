package handler

import (
	"net/http"

	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type StockHandler struct {
	svc   service.StockService
	retry service.RetryPolicy
}

func NewStockHandler(svc service.StockService, retry service.RetryPolicy) *StockHandler {
	return &StockHandler{svc: svc, retry: retry}
}

// Receive godoc
// @Summary Register a goods receipt (entrada)
// @Tags stock
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id   path string                true "Product ID"
// @Param body body dto.StockEntryRequest true "Entry"
// @Success 201 {object} dto.StockMovementResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/products/{id}/stock/entries [post]
func (h *StockHandler) Receive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.StockEntryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "stock.receive", func() (*dto.StockMovementResponse, error) {
		return h.svc.Receive(ctx, actorID, id, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Adjust godoc
// @Summary Manual stock adjustment (ajuste)
// @Tags stock
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id   path string                 true "Product ID"
// @Param body body dto.StockAdjustRequest true "Adjustment"
// @Success 201 {object} dto.StockMovementResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/products/{id}/stock/adjustments [post]
func (h *StockHandler) Adjust(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.StockAdjustRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "stock.adjust", func() (*dto.StockMovementResponse, error) {
		return h.svc.Adjust(ctx, actorID, id, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Movements godoc
// @Summary Stock movements of a product, newest first
// @Tags stock
// @Produce json
// @Security BearerAuth
// @Param id    path  string true  "Product ID"
// @Param kind  query string false "entrada | saida | ajuste"
// @Param page  query int    false "Page"
// @Param limit query int    false "Page size"
// @Success 200 {object} dto.StockMovementListResponse
// @Router /v1/products/{id}/stock/movements [get]
func (h *StockHandler) Movements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var filter dto.StockMovementFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListMovements(c.Request.Context(), id, filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reconcile godoc
// @Summary Compare stored quantity with the stock movement sum
// @Tags stock
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} dto.StockReconcileResponse
// @Router /v1/products/{id}/stock/reconcile [get]
func (h *StockHandler) Reconcile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Reconcile(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LowStock godoc
// @Summary Stock-controlled products at or below their minimum
// @Tags stock
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.LowStockItem
// @Router /v1/stock/low [get]
func (h *StockHandler) LowStock(c *gin.Context) {
	resp, err := h.svc.LowStock(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
