package handler

import (
	"log/slog"
	"net/http"

	"streamvault/internal/service"

	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Login(username, password string) (*service.LoginResult, error)
}

type AuthHandler struct {
	svc    Authenticator
	logger *slog.Logger
}

func NewAuthHandler(svc Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.svc.Login(req.Username, req.Password)
	if err != nil {
		h.logger.Warn("admin login failed", "username", req.Username, "ip", c.ClientIP())
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
