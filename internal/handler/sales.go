package handler

import (
	"net/http"

	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct {
	svc   service.SaleService
	retry service.RetryPolicy
}

func NewSalesHandler(svc service.SaleService, retry service.RetryPolicy) *SalesHandler {
	return &SalesHandler{svc: svc, retry: retry}
}

// Execute godoc
// @Summary      Register a sale
// @Description  Atomically debits the student account, decrements stock and records the sale. A repeated idempotency_key returns the original sale.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.ExecuteSaleRequest true "Sale"
// @Success      201  {object} dto.SaleResponse
// @Success      200  {object} dto.SaleResponse "replayed"
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/sales [post]
func (h *SalesHandler) Execute(c *gin.Context) {
	var req dto.ExecuteSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "sale.execute", func() (*dto.SaleResponse, error) {
		return h.svc.Execute(ctx, actorID, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// Get godoc
// @Summary  Get a sale
// @Tags     sales
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Sale ID"
// @Success  200 {object} dto.SaleResponse
// @Failure  404 {object} apierror.APIError
// @Router   /v1/sales/{id} [get]
func (h *SalesHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary      Cancel a sale
// @Description  Refunds the account and restores stock with compensating movements. The sale's cash session must still be open.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "Sale ID"
// @Param        body body dto.CancelSaleRequest true "Reason"
// @Success      200  {object} dto.SaleResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/sales/{id}/cancel [post]
func (h *SalesHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "sale.cancel", func() (*dto.SaleResponse, error) {
		return h.svc.Cancel(ctx, actorID, id, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
