package handler

import (
	"errors"
	"net/http"

	"streamvault/internal/domain"
	"streamvault/internal/service"
	"streamvault/pkg/payment"

	"github.com/gin-gonic/gin"
)

const genericPaymentError = "Payment could not be processed. Please try again."

var codeStatus = map[string]int{
	domain.CodeValidation:           http.StatusBadRequest,
	domain.CodeCardDeclined:         http.StatusPaymentRequired,
	domain.CodeGatewayConfig:        http.StatusInternalServerError,
	domain.CodeGatewayUnavailable:   http.StatusServiceUnavailable,
	domain.CodeInvalidRequest:       http.StatusBadRequest,
	domain.CodeDuplicateReference:   http.StatusConflict,
	domain.CodeAmountMismatch:       http.StatusUnprocessableEntity,
	domain.CodeUnknownReference:     http.StatusNotFound,
	domain.CodeCouponExpired:        http.StatusBadRequest,
	domain.CodeCouponExhausted:      http.StatusBadRequest,
	domain.CodeCouponNotActive:      http.StatusBadRequest,
	domain.CodeCouponNotFound:       http.StatusNotFound,
	domain.CodeCouponAlreadyClaimed: http.StatusBadRequest,
	domain.CodeInvalidCredentials:   http.StatusUnauthorized,
}

// respondError writes the {error, code, requiresAction} envelope. Gateway
// text never reaches the client except a decline's customer-safe message.
func respondError(c *gin.Context, err error) {
	code := service.ErrorCode(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := gin.H{"code": code, "requiresAction": false}

	var declined *payment.DeclinedError
	var input *service.InputError
	switch {
	case errors.As(err, &declined):
		body["error"] = declined.Message
		body["requiresAction"] = declined.RequiresAction
	case errors.As(err, &input):
		body["error"] = input.Message
		body["field"] = input.Field
	case code == domain.CodeGatewayConfig, code == domain.CodeGatewayUnavailable, code == domain.CodeInvalidRequest:
		body["error"] = genericPaymentError
	case code == domain.CodeInternal:
		body["error"] = "internal error"
	default:
		body["error"] = err.Error()
	}
	if status >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func bindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": domain.CodeValidation, "requiresAction": false})
}
