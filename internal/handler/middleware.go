package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logipay/pkg/logging"
	"logipay/pkg/response"
)

// RecoveryMiddleware keeps a panicking handler from taking the process down.
func RecoveryMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithField("panic", err).Error("recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    response.CodeServerError,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Webhook-Secret")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// WebhookAuthMiddleware rejects callbacks that do not carry the shared
// secret the payment provider was issued.
func WebhookAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Webhook-Secret") != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    response.CodeUnauthorized,
				"message": "invalid webhook secret",
			})
			return
		}
		c.Next()
	}
}
