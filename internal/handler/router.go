package handler

import (
	"net/http"

	"logipay/internal/config"
	"logipay/internal/rates"
	"logipay/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, rateCalc rates.Calculator, logger *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(RecoveryMiddleware(logger))
	r.Use(logger.GinMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg, rateCalc, logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		wallet := v1.Group("/wallet")
		{
			wallet.GET("/summary", h.GetWalletSummary)
			wallet.GET("/transactions", h.ListWalletTransactions)
			wallet.GET("/transactions/:transaction_no", h.GetWalletTransaction)
			wallet.GET("/statement", h.ExportWalletStatement)
			wallet.POST("/recharge", h.CreateRecharge)
			wallet.GET("/recharges", h.ListRecharges)
		}

		webhook := v1.Group("/webhook", WebhookAuthMiddleware(cfg.Webhook.Secret))
		{
			webhook.POST("/payment", h.PaymentWebhook)
		}

		shipments := v1.Group("/shipments")
		{
			shipments.POST("", h.CreateShipment)
			shipments.GET("", h.ListShipments)
			shipments.GET("/:tracking", h.GetShipment)
		}

		rules := v1.Group("/rules")
		{
			rules.POST("", h.CreateRule)
			rules.GET("", h.ListRules)
			rules.GET("/:id", h.GetRule)
		}

		coupons := v1.Group("/coupons")
		{
			coupons.POST("", h.CreateCoupon)
			coupons.GET("", h.ListCoupons)
		}
	}

	return r
}
