package handler

import (
	"context"
	"log/slog"
	"net/http"

	"streamvault/internal/middleware"
	"streamvault/internal/models"
	"streamvault/internal/repository"
	"streamvault/pkg/checkout"

	"github.com/gin-gonic/gin"
)

type ProviderService interface {
	Public(ctx context.Context) (checkout.PublicConfig, error)
	Private(ctx context.Context) (*models.PaymentConfig, error)
	Update(ctx context.Context, patch repository.PaymentConfigPatch) (*models.PaymentConfig, error)
}

type PaymentConfigHandler struct {
	svc    ProviderService
	logger *slog.Logger
}

func NewPaymentConfigHandler(svc ProviderService, logger *slog.Logger) *PaymentConfigHandler {
	return &PaymentConfigHandler{svc: svc, logger: logger}
}

// Public handles GET /payment/config/public.
func (h *PaymentConfigHandler) Public(c *gin.Context) {
	pub, err := h.svc.Public(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.JSON(http.StatusOK, pub)
}

func (h *PaymentConfigHandler) Get(c *gin.Context) {
	cfg, err := h.svc.Private(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, cfg)
}

func (h *PaymentConfigHandler) Update(c *gin.Context) {
	var patch repository.PaymentConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	cfg, err := h.svc.Update(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("payment config changed", "by", middleware.GetUsername(c), "provider", cfg.Provider)
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, cfg)
}
