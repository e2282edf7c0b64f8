// internal/handler/webhook_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/service"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/webhook"
)

type WebhookHandler struct {
	service *service.PaymentService
	logger  *zap.Logger
}

func NewWebhookHandler(service *service.PaymentService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger,
	}
}

// Receive handles POST /api/v1/webhooks/payment. Rejections stay generic:
// a spoofed caller learns nothing beyond the boolean outcome.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": "unreadable body"}})
		return
	}

	payment, applied, err := h.service.ApplyWebhook(
		c.Request.Context(),
		body,
		c.GetHeader(webhook.SignatureHeader),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		var validation *models.ValidationError
		var transition *models.InvalidTransitionError
		switch {
		case errors.Is(err, models.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "invalid_signature", "message": "rejected"}})
		case errors.As(err, &validation):
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": validation.Error()}})
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": "not_found", "message": "unknown payment"}})
		case errors.As(err, &transition):
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"kind": "invalid_transition", "message": transition.Error()}})
		default:
			h.logger.Error("webhook processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "internal", "message": "internal server error"}})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"applied":  applied,
		"status":   payment.Status,
	})
}
