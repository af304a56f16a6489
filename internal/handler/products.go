package handler

import (
	"net/http"

	"github.com/rmgimenez/php-cantina-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// ProductsHandler serves the public price check endpoint.
// No authentication required and no side effects.
type ProductsHandler struct {
	svc service.CatalogService
}

func NewProductsHandler(svc service.CatalogService) *ProductsHandler {
	return &ProductsHandler{svc: svc}
}

// Lookup godoc
// @Summary Price and stock check for a product (no authentication)
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} dto.ProductLookupResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/products/{id} [get]
func (h *ProductsHandler) Lookup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Lookup(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
