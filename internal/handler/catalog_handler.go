package handler

import (
	"context"
	"errors"
	"net/http"

	"streamvault/internal/service"
	"streamvault/pkg/checkout"
	"streamvault/pkg/pricing"

	"github.com/gin-gonic/gin"
)

type CouponValidator interface {
	Validate(ctx context.Context, code string) (*service.CouponView, error)
}

type CatalogHandler struct {
	engine  *pricing.Engine
	coupons CouponValidator
}

func NewCatalogHandler(engine *pricing.Engine, coupons CouponValidator) *CatalogHandler {
	return &CatalogHandler{engine: engine, coupons: coupons}
}

func (h *CatalogHandler) Packages(c *gin.Context) {
	cat := h.engine.Catalog()
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, gin.H{"packages": cat.Packages(), "addOns": cat.AddOns()})
}

// Quote prices an order. A coupon that cannot be applied is reported on the
// quote, an unusable one is an error.
func (h *CatalogHandler) Quote(c *gin.Context) {
	var req checkout.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	order := pricing.Order{PackageID: req.PackageID, AddOnIDs: req.AddOns}
	if req.CouponCode != "" {
		view, err := h.coupons.Validate(c.Request.Context(), req.CouponCode)
		if err != nil {
			respondError(c, err)
			return
		}
		d := view.Discount()
		order.Discount = &d
	}
	q, err := h.engine.Quote(order)
	if err != nil {
		field := "addOns"
		if errors.Is(err, pricing.ErrUnknownPackage) {
			field = "packageId"
		}
		respondError(c, &service.InputError{Field: field, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, q)
}
