package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"streamvault/internal/geo"

	"github.com/gin-gonic/gin"
)

const CountryHeader = "CF-IPCountry"

type GeoChecker interface {
	IsBlocked(ctx context.Context, ip, hint string) (geo.Verdict, error)
}

// GeoGate refuses requests from blocked countries. Lookup failures let the
// request through.
func GeoGate(gate GeoChecker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := gate.IsBlocked(c.Request.Context(), c.ClientIP(), c.GetHeader(CountryHeader))
		if err != nil {
			logger.Warn("geo check failed, allowing request", "ip", c.ClientIP(), "error", err)
			c.Next()
			return
		}
		c.Set("country", v.CountryCode)
		if v.Blocked {
			c.AbortWithStatusJSON(http.StatusUnavailableForLegalReasons, gin.H{
				"error":   "checkout is not available in your region",
				"code":    "region_blocked",
				"country": v.CountryCode,
			})
			return
		}
		c.Next()
	}
}
