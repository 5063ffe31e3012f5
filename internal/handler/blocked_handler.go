package handler

import (
	"net/http"

	"streamvault/internal/middleware"

	"github.com/gin-gonic/gin"
)

type BlockedHandler struct {
	gate middleware.GeoChecker
}

func NewBlockedHandler(gate middleware.GeoChecker) *BlockedHandler {
	return &BlockedHandler{gate: gate}
}

// Check handles GET /blocked. Lookup failures answer not blocked.
func (h *BlockedHandler) Check(c *gin.Context) {
	v, err := h.gate.IsBlocked(c.Request.Context(), c.ClientIP(), c.GetHeader(middleware.CountryHeader))
	if err != nil {
		_ = c.Error(err)
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, v)
}
