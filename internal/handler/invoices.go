package handler

import (
	"net/http"

	"github.com/rmgimenez/php-cantina-sub001/internal/apierror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InvoicesHandler struct {
	svc   service.InvoiceService
	retry service.RetryPolicy
}

func NewInvoicesHandler(svc service.InvoiceService, retry service.RetryPolicy) *InvoicesHandler {
	return &InvoicesHandler{svc: svc, retry: retry}
}

// Recompute godoc
// @Summary Rebuild an employee's monthly invoice from the sales
// @Description Idempotent: running it twice yields the same items and total.
// @Tags invoices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RecomputeInvoiceRequest true "Employee and month (YYYY-MM)"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/invoices/recompute [post]
func (h *InvoicesHandler) Recompute(c *gin.Context) {
	var req dto.RecomputeInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	employeeID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid employee_id"))
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "invoice.recompute", func() (*dto.InvoiceResponse, error) {
		return h.svc.Recompute(ctx, employeeID, req.MonthRef)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Stored monthly invoice
// @Tags invoices
// @Produce json
// @Security BearerAuth
// @Param employee_id path string true "Employee account ID"
// @Param month path string true "Month (YYYY-MM)"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/invoices/{employee_id}/{month} [get]
func (h *InvoicesHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "employee_id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id, c.Param("month"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
