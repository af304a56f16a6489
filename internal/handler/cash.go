package handler

import (
	"net/http"

	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type CashHandler struct {
	svc   service.CashService
	retry service.RetryPolicy
}

func NewCashHandler(svc service.CashService, retry service.RetryPolicy) *CashHandler {
	return &CashHandler{svc: svc, retry: retry}
}

// Open godoc
// @Summary Open a cash session on a register
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Opening data"
// @Success 201 {object} dto.SessionReportResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/sessions [post]
func (h *CashHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "cash.open", func() (*dto.SessionReportResponse, error) {
		return h.svc.Open(ctx, actorID, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Close a cash session with the counted drawer total
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.CloseSessionRequest true "Counted totals"
// @Success 200 {object} dto.SessionReportResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/sessions/{id}/close [post]
func (h *CashHandler) Close(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "cash.close", func() (*dto.SessionReportResponse, error) {
		return h.svc.Close(ctx, actorID, id, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Cash session report (running totals while open)
// @Tags cash
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionReportResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash/sessions/{id} [get]
func (h *CashHandler) Report(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Active godoc
// @Summary Open session of a register
// @Tags cash
// @Produce json
// @Security BearerAuth
// @Param id path string true "Register ID"
// @Success 200 {object} dto.SessionReportResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash/registers/{id}/active [get]
func (h *CashHandler) Active(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Active(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
