package handler

import (
	"net/http"

	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// AccountsHandler exposes the money ledger of student and employee accounts.
type AccountsHandler struct {
	svc   service.LedgerService
	retry service.RetryPolicy
}

func NewAccountsHandler(svc service.LedgerService, retry service.RetryPolicy) *AccountsHandler {
	return &AccountsHandler{svc: svc, retry: retry}
}

// Balance godoc
// @Summary Balance, daily limit and amount spent today
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} dto.BalanceResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/accounts/{id}/balance [get]
func (h *AccountsHandler) Balance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Balance(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movements godoc
// @Summary Ledger movements of an account, newest first
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id    path  string true  "Account ID"
// @Param page  query int    false "Page (default 1)"
// @Param limit query int    false "Page size (default 100)"
// @Success 200 {object} dto.MovementListResponse
// @Router /v1/accounts/{id}/movements [get]
func (h *AccountsHandler) Movements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	q := dto.PageQuery{Page: 1, Limit: 100}
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.ListMovements(c.Request.Context(), id, q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Credit godoc
// @Summary Top up an account
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id   path string            true "Account ID"
// @Param body body dto.CreditRequest true "Credit"
// @Success 201 {object} dto.MovementResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/accounts/{id}/credits [post]
func (h *AccountsHandler) Credit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CreditRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "ledger.credit", func() (*dto.MovementResponse, error) {
		return h.svc.Credit(ctx, actorID, id, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Adjust godoc
// @Summary Manual balance adjustment
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id   path string            true "Account ID"
// @Param body body dto.AdjustRequest true "Adjustment"
// @Success 201 {object} dto.MovementResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/accounts/{id}/adjustments [post]
func (h *AccountsHandler) Adjust(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "ledger.adjust", func() (*dto.MovementResponse, error) {
		return h.svc.Adjust(ctx, actorID, id, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Reverse godoc
// @Summary Reverse a movement with a compensating entry
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id   path string             true "Movement ID"
// @Param body body dto.ReverseRequest true "Reason"
// @Success 201 {object} dto.MovementResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/movements/{id}/reverse [post]
func (h *AccountsHandler) Reverse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReverseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actorID, ok := actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	resp, err := service.WithRetry(ctx, h.retry, "ledger.reverse", func() (*dto.MovementResponse, error) {
		return h.svc.Reverse(ctx, actorID, id, req)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Reconcile godoc
// @Summary Compare the stored balance with the ledger sum
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} dto.ReconcileResponse
// @Router /v1/accounts/{id}/reconcile [get]
func (h *AccountsHandler) Reconcile(c *gin.Context) {
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
