package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tillsync/internal/apierror"
	"tillsync/internal/dto"
	"tillsync/internal/service"
	"tillsync/internal/sync"
)

type ProductsHandler struct{ svc service.CatalogService }

func NewProductsHandler(svc service.CatalogService) *ProductsHandler {
	return &ProductsHandler{svc: svc}
}

// List serves the cached catalog; identical on- and offline.
func (h *ProductsHandler) List(c *gin.Context) {
	var filter dto.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	if filter.MerchantID == "" {
		c.JSON(http.StatusBadRequest, apierror.New("merchantId required"))
		return
	}
	products, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list products"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// Refresh pulls the catalog from the cloud into the local cache.
func (h *ProductsHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), req.MerchantID, req.Full)
	if err != nil {
		if errors.Is(err, sync.ErrOffline) {
			c.JSON(http.StatusConflict, apierror.New("offline"))
			return
		}
		c.JSON(http.StatusBadGateway, apierror.New("catalog refresh failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
