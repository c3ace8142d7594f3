package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tillsync/internal/apierror"
	"tillsync/internal/dto"
	"tillsync/internal/repository"
	"tillsync/internal/service"
)

type ReceiptsHandler struct {
	checkout service.CheckoutService
	history  service.HistoryService
}

func NewReceiptsHandler(checkout service.CheckoutService, history service.HistoryService) *ReceiptsHandler {
	return &ReceiptsHandler{checkout: checkout, history: history}
}

// Issue confirms a sale. Always succeeds locally; sync is a background
// concern and never blocks the checkout flow.
func (h *ReceiptsHandler) Issue(c *gin.Context) {
	var req dto.IssueReceiptRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.checkout.IssueReceipt(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateReceipt) {
			c.JSON(http.StatusConflict, apierror.New("duplicate receipt"))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List returns the reconciled history for a merchant.
func (h *ReceiptsHandler) List(c *gin.Context) {
	merchantID := c.Query("merchantId")
	if merchantID == "" {
		c.JSON(http.StatusBadRequest, apierror.New("merchantId required"))
		return
	}
	views, err := h.history.List(c.Request.Context(), merchantID, dto.HistoryFilter{
		Status:  c.Query("status"),
		Payment: c.Query("payment"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list receipts"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": views})
}
