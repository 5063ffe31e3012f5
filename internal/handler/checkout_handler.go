package handler

import (
	"context"
	"net/http"

	"streamvault/internal/service"
	"streamvault/pkg/checkout"

	"github.com/gin-gonic/gin"
)

type CheckoutService interface {
	Create(ctx context.Context, req checkout.SubmitRequest) (*checkout.SubmitResponse, error)
	Status(ctx context.Context, ref string) (*service.StatusView, error)
}

type CheckoutHandler struct {
	svc CheckoutService
}

func NewCheckoutHandler(svc CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

// Create handles POST /checkout/create.
func (h *CheckoutHandler) Create(c *gin.Context) {
	var req checkout.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status handles GET /checkout/status/:reference.
func (h *CheckoutHandler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, st)
}
