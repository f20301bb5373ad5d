package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeServerError  = 500
)

// Business codes. Stable, never reused: callers key retry/alerting off them.
const (
	CodeWalletNotFound        = 1001
	CodeWalletBlocked         = 1002
	CodeInsufficientBalance   = 1003
	CodeCreditLimitExceeded   = 1004
	CodeRechargeNotFound      = 1005
	CodeAmountMismatch        = 1006
	CodeCouponNotFound        = 1010
	CodeCouponInactive        = 1011
	CodeCouponScopeMismatch   = 1012
	CodeCouponLimitReached    = 1013
	CodeMinOrderNotMet        = 1014
	CodeUnsupportedForContext = 1015
	CodeRuleNotFound          = 1020
	CodeNoRateFound           = 1030
	CodeValidationError       = 1031
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
