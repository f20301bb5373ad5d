package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"logipay/internal/config"
	"logipay/internal/model"
	"logipay/internal/rates"
	"logipay/internal/repository"
	"logipay/internal/service"
	"logipay/pkg/logging"
	"logipay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Handler struct {
	walletService   *service.WalletService
	rechargeService *service.RechargeService
	discountService *service.DiscountService
	couponService   *service.CouponService
	shipmentService *service.ShipmentService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, rateCalc rates.Calculator, logger *logging.Logger) *Handler {
	return &Handler{
		walletService:   service.NewWalletService(db, logger),
		rechargeService: service.NewRechargeService(db, rdb, cfg, logger),
		discountService: service.NewDiscountService(db),
		couponService:   service.NewCouponService(db),
		shipmentService: service.NewShipmentService(db, cfg, rateCalc, logger),
	}
}

// writeError maps a service failure to its stable business code.
func writeError(c *gin.Context, err error) {
	if verr, ok := service.AsValidationError(err); ok {
		c.JSON(http.StatusOK, response.Response{
			Code:    response.CodeValidationError,
			Message: verr.Error(),
			Data:    gin.H{"violations": verr.Violations},
		})
		return
	}

	switch {
	case errors.Is(err, repository.ErrWalletNotFound):
		response.BusinessError(c, response.CodeWalletNotFound, err.Error())
	case errors.Is(err, repository.ErrTransactionNotFound):
		response.BusinessError(c, response.CodeNotFound, err.Error())
	case errors.Is(err, repository.ErrRechargeNotFound):
		response.BusinessError(c, response.CodeRechargeNotFound, err.Error())
	case errors.Is(err, repository.ErrCouponNotFound):
		response.BusinessError(c, response.CodeCouponNotFound, err.Error())
	case errors.Is(err, repository.ErrRuleNotFound):
		response.BusinessError(c, response.CodeRuleNotFound, err.Error())
	case errors.Is(err, repository.ErrShipmentNotFound):
		response.BusinessError(c, response.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrWalletBlocked):
		response.BusinessError(c, response.CodeWalletBlocked, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, service.ErrCreditLimitExceeded):
		response.BusinessError(c, response.CodeCreditLimitExceeded, err.Error())
	case errors.Is(err, service.ErrAmountMismatch):
		response.BusinessError(c, response.CodeAmountMismatch, err.Error())
	case errors.Is(err, service.ErrCouponInactiveOrExpired):
		response.BusinessError(c, response.CodeCouponInactive, err.Error())
	case errors.Is(err, service.ErrCouponScopeMismatch):
		response.BusinessError(c, response.CodeCouponScopeMismatch, err.Error())
	case errors.Is(err, service.ErrCouponLimitReached):
		response.BusinessError(c, response.CodeCouponLimitReached, err.Error())
	case errors.Is(err, service.ErrMinOrderNotMet):
		response.BusinessError(c, response.CodeMinOrderNotMet, err.Error())
	case errors.Is(err, service.ErrUnsupportedForContext):
		response.BusinessError(c, response.CodeUnsupportedForContext, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		response.ParamError(c, err.Error())
	case errors.Is(err, rates.ErrNoRateFound):
		response.BusinessError(c, response.CodeNoRateFound, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func parseWalletQuery(c *gin.Context) (int64, int64, bool) {
	franchiseID, err := strconv.ParseInt(c.Query("franchise_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid franchise_id")
		return 0, 0, false
	}
	customerID, err := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid customer_id")
		return 0, 0, false
	}
	return franchiseID, customerID, true
}

// GetWalletSummary
// GET /api/v1/wallet/summary?franchise_id=x&customer_id=y
func (h *Handler) GetWalletSummary(c *gin.Context) {
	franchiseID, customerID, ok := parseWalletQuery(c)
	if !ok {
		return
	}

	summary, err := h.walletService.GetSummary(c.Request.Context(), franchiseID, customerID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, summary)
}

// ListWalletTransactions
// GET /api/v1/wallet/transactions?franchise_id=x&customer_id=y&page=1&limit=20
func (h *Handler) ListWalletTransactions(c *gin.Context) {
	franchiseID, customerID, ok := parseWalletQuery(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	transactions, total, err := h.walletService.ListTransactions(c.Request.Context(), franchiseID, customerID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  transactions,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// ExportWalletStatement
// GET /api/v1/wallet/statement?franchise_id=x&customer_id=y&limit=100
func (h *Handler) ExportWalletStatement(c *gin.Context) {
	franchiseID, customerID, ok := parseWalletQuery(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=wallet-statement-%d-%d.csv", franchiseID, customerID))
	if err := h.walletService.ExportStatement(c.Request.Context(), franchiseID, customerID, limit, c.Writer); err != nil {
		writeError(c, err)
	}
}

// GetWalletTransaction
// GET /api/v1/wallet/transactions/:transaction_no
func (h *Handler) GetWalletTransaction(c *gin.Context) {
	trans, err := h.walletService.GetTransaction(c.Request.Context(), c.Param("transaction_no"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, trans)
}

// ListRecharges
// GET /api/v1/wallet/recharges?franchise_id=x&customer_id=y&page=1&limit=20
func (h *Handler) ListRecharges(c *gin.Context) {
	franchiseID, customerID, ok := parseWalletQuery(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	recharges, total, err := h.rechargeService.ListRecharges(c.Request.Context(), franchiseID, customerID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  recharges,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// CreateRecharge
// POST /api/v1/wallet/recharge
func (h *Handler) CreateRecharge(c *gin.Context) {
	var req service.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	recharge, err := h.rechargeService.CreateIntent(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, recharge)
}

type webhookPayload struct {
	OrderReference string           `json:"order_reference"`
	PaymentID      string           `json:"payment_id"`
	Status         string           `json:"status"`
	Amount         *decimal.Decimal `json:"amount"`
}

// PaymentWebhook receives asynchronous confirmations from the payment
// provider. Duplicates are acknowledged with already_processed so the
// provider stops retrying; internal failures surface as 500 so it retries.
// POST /api/v1/webhook/payment
func (h *Handler) PaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": response.CodeParamError, "message": "unreadable payload"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.OrderReference == "" || payload.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": response.CodeParamError, "message": "malformed webhook payload"})
		return
	}

	var raw model.JSONMap
	_ = json.Unmarshal(body, &raw)

	req := service.WebhookRequest{
		OrderReference: payload.OrderReference,
		PaymentID:      payload.PaymentID,
		Status:         payload.Status,
		Payload:        raw,
	}
	if payload.Amount != nil {
		req.Amount = decimal.NewNullDecimal(*payload.Amount)
	}

	result, err := h.rechargeService.ReconcileWebhook(c.Request.Context(), req)
	if err != nil {
		// The provider keys retries off the HTTP status, so business
		// failures surface as 500 here rather than the usual envelope.
		c.JSON(http.StatusInternalServerError, gin.H{"code": response.CodeServerError, "message": err.Error()})
		return
	}
	response.Success(c, result)
}

// CreateShipment
// POST /api/v1/shipments
func (h *Handler) CreateShipment(c *gin.Context) {
	var req service.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	shipment, err := h.shipmentService.CreateShipment(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, shipment)
}

// GetShipment
// GET /api/v1/shipments/:tracking
func (h *Handler) GetShipment(c *gin.Context) {
	shipment, err := h.shipmentService.GetByTrackingCode(c.Request.Context(), c.Param("tracking"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, shipment)
}

// ListShipments
// GET /api/v1/shipments?franchise_id=x&page=1&limit=20
func (h *Handler) ListShipments(c *gin.Context) {
	franchiseID, err := strconv.ParseInt(c.Query("franchise_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid franchise_id")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	shipments, total, err := h.shipmentService.ListShipments(c.Request.Context(), franchiseID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  shipments,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// CreateRule
// POST /api/v1/rules
func (h *Handler) CreateRule(c *gin.Context) {
	var rule model.DiscountRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if rule.FranchiseID == 0 || rule.RuleName == "" || rule.DiscountType == "" {
		response.ParamError(c, "franchise_id, rule_name and discount_type are required")
		return
	}

	if err := h.discountService.CreateRule(c.Request.Context(), &rule); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, rule)
}

// GetRule
// GET /api/v1/rules/:id
func (h *Handler) GetRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid rule id")
		return
	}

	rule, err := h.discountService.GetRule(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, rule)
}

// ListRules
// GET /api/v1/rules?franchise_id=x
func (h *Handler) ListRules(c *gin.Context) {
	franchiseID, err := strconv.ParseInt(c.Query("franchise_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid franchise_id")
		return
	}

	rules, err := h.discountService.ListRules(c.Request.Context(), franchiseID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, rules)
}

// CreateCoupon
// POST /api/v1/coupons
func (h *Handler) CreateCoupon(c *gin.Context) {
	var coupon model.Coupon
	if err := c.ShouldBindJSON(&coupon); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if coupon.FranchiseID == 0 || coupon.Code == "" || coupon.DiscountType == "" {
		response.ParamError(c, "franchise_id, code and discount_type are required")
		return
	}

	if err := h.couponService.CreateCoupon(c.Request.Context(), &coupon); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, coupon)
}

// ListCoupons
// GET /api/v1/coupons?franchise_id=x
func (h *Handler) ListCoupons(c *gin.Context) {
	franchiseID, err := strconv.ParseInt(c.Query("franchise_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid franchise_id")
		return
	}

	coupons, err := h.couponService.ListCoupons(c.Request.Context(), franchiseID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, coupons)
}
