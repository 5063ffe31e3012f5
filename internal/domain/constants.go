package domain

const (
	RoleAdmin = "ADMIN"
)

// Coupon lifecycle states. Expired and exhausted are terminal.
const (
	CouponUnclaimed = "unclaimed"
	CouponActive    = "active"
	CouponExpired   = "expired"
	CouponExhausted = "exhausted"
)

const (
	WelcomeCouponPrefix  = "WELCOME5-"
	WelcomeCouponDays    = 30
	WelcomeCouponMaxUses = 1
	WelcomeCouponCodeLen = 6
)

const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

// Stable error codes carried in API error bodies.
const (
	CodeValidation           = "validation_error"
	CodeCardDeclined         = "card_declined"
	CodeGatewayConfig        = "gateway_config"
	CodeGatewayUnavailable   = "gateway_unavailable"
	CodeInvalidRequest       = "invalid_request"
	CodeDuplicateReference   = "duplicate_reference"
	CodeAmountMismatch       = "amount_mismatch"
	CodeUnknownReference     = "unknown_reference"
	CodeCouponExpired        = "coupon_expired"
	CodeCouponExhausted      = "coupon_exhausted"
	CodeCouponNotActive      = "coupon_not_active"
	CodeCouponNotFound       = "coupon_not_found"
	CodeCouponAlreadyClaimed = "coupon_already_claimed"
	CodeInvalidCredentials   = "invalid_credentials"
	CodeInternal             = "internal_error"
)
