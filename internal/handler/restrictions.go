package handler

import (
	"net/http"

	"github.com/rmgimenez/php-cantina-sub001/internal/apierror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RestrictionsHandler struct {
	svc service.RestrictionService
}

func NewRestrictionsHandler(svc service.RestrictionService) *RestrictionsHandler {
	return &RestrictionsHandler{svc: svc}
}

// Check godoc
// @Summary Whether an account may buy a product
// @Tags restrictions
// @Produce json
// @Security BearerAuth
// @Param account_id      query string true  "Account ID"
// @Param product_id      query string true  "Product ID"
// @Param product_type_id query string false "Product type ID (looked up when omitted)"
// @Success 200 {object} dto.RestrictionCheckResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/restrictions/check [get]
func (h *RestrictionsHandler) Check(c *gin.Context) {
	var q dto.RestrictionCheckQuery
	if !bindQuery(c, &q) {
		return
	}
	accountID, err1 := uuid.Parse(q.AccountID)
	productID, err2 := uuid.Parse(q.ProductID)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid account_id or product_id"))
		return
	}
	var typeID *uuid.UUID
	if q.ProductTypeID != "" {
		id, err := uuid.Parse(q.ProductTypeID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid product_type_id"))
			return
		}
		typeID = &id
	}

	resp, err := h.svc.Check(c.Request.Context(), accountID, productID, typeID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddRule godoc
// @Summary Add a purchase restriction or permission for an account
// @Tags restrictions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AddRuleRequest true "Rule"
// @Success 201 {object} dto.RuleResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/restrictions [post]
func (h *RestrictionsHandler) AddRule(c *gin.Context) {
	var req dto.AddRuleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddRule(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// DeactivateRule godoc
// @Summary Deactivate a rule (rules are never deleted)
// @Tags restrictions
// @Security BearerAuth
// @Param id path string true "Rule ID"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Router /v1/restrictions/{id} [delete]
func (h *RestrictionsHandler) DeactivateRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateRule(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRules godoc
// @Summary Rules of an account, newest first
// @Tags restrictions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param include_inactive query bool false "Include deactivated rules"
// @Success 200 {array} dto.RuleResponse
// @Router /v1/accounts/{id}/restrictions [get]
func (h *RestrictionsHandler) ListRules(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	includeInactive := c.Query("include_inactive") == "true"
	resp, err := h.svc.ListRules(c.Request.Context(), id, includeInactive)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
