package service

import (
	"errors"
	"strings"
)

// Business failures surfaced to callers with a stable kind. Nothing here is
// retried internally; retry policy belongs to the caller (for the webhook,
// the payment provider).
var (
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrWalletBlocked           = errors.New("wallet is blocked")
	ErrInsufficientBalance     = errors.New("insufficient wallet balance")
	ErrCreditLimitExceeded     = errors.New("wallet credit limit exceeded")
	ErrAmountMismatch          = errors.New("reported amount does not match recharge net amount")
	ErrCouponInactiveOrExpired = errors.New("coupon is inactive or expired")
	ErrCouponScopeMismatch     = errors.New("coupon is not applicable in this context")
	ErrCouponLimitReached      = errors.New("coupon usage limit reached")
	ErrMinOrderNotMet          = errors.New("order amount below coupon minimum")
	ErrUnsupportedForContext   = errors.New("coupon type not supported for this context")
)

// ValidationError carries every input violation found before any write.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// AsValidationError unwraps err into a *ValidationError when it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
