package handler

import (
	"context"
	"net/http"

	"streamvault/internal/service"

	"github.com/gin-gonic/gin"
)

type CouponService interface {
	Validate(ctx context.Context, code string) (*service.CouponView, error)
	Issue(ctx context.Context, email, phone string) (*service.IssuedCoupon, error)
}

type CouponHandler struct {
	svc CouponService
}

func NewCouponHandler(svc CouponService) *CouponHandler {
	return &CouponHandler{svc: svc}
}

type ValidateCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

type IssueCouponRequest struct {
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required,min=10"`
}

func (h *CouponHandler) Validate(c *gin.Context) {
	var req ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, err := h.svc.Validate(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CouponHandler) Issue(c *gin.Context) {
	var req IssueCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	issued, err := h.svc.Issue(c.Request.Context(), req.Email, req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issued)
}
