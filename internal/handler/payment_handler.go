// internal/handler/payment_handler.go
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/service"
)

type PaymentHandler struct {
	service *service.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(service *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// respondError maps domain errors onto stable error kinds. Sensitive
// internals are never serialized here.
func (h *PaymentHandler) respondError(c *gin.Context, err error) {
	var (
		validation *models.ValidationError
		transition *models.InvalidTransitionError
		fraud      *models.FraudBlockedError
		gw         *models.GatewayError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": validation.Error()}})
	case errors.Is(err, models.ErrUnsupportedMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "unsupported_method", "message": err.Error()}})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": "not_found", "message": "resource not found"}})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"kind": "invalid_transition", "message": transition.Error()}})
	case errors.As(err, &fraud):
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"kind": "fraud_blocked", "message": fraud.Error(), "flags": fraud.Flags}})
	case errors.Is(err, models.ErrRetryLimitReached):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{"kind": "retry_limit", "message": err.Error()}})
	case errors.As(err, &gw):
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"kind": "gateway_error", "message": "settlement provider unavailable"}})
	default:
		h.logger.Error("unhandled error", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "internal", "message": "internal server error"}})
	}
}

// Initiate handles POST /api/v1/payments
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req service.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": err.Error()}})
		return
	}
	// Callers identify via X-Actor until authn is attached; anonymous
	// requests fall back to the request id.
	req.Actor = c.GetHeader("X-Actor")
	if req.Actor == "" {
		req.Actor = c.GetString("request_id")
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.service.Initiate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Get handles GET /api/v1/payments/:reference
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.service.Verify(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// Verify handles GET /api/v1/payments/:reference/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	payment, err := h.service.Verify(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_reference": payment.PaymentReference,
		"status":            payment.Status,
		"amount":            payment.Amount,
		"currency":          payment.Currency,
		"method":            payment.Method,
	})
}

// ListByOrder handles GET /api/v1/orders/:orderID/payments
func (h *PaymentHandler) ListByOrder(c *gin.Context) {
	payments, err := h.service.ListByOrder(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// Cancel handles POST /api/v1/payments/:reference/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
		Actor  string `json:"actor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": err.Error()}})
		return
	}

	payment, err := h.service.Cancel(c.Request.Context(), c.Param("reference"), req.Reason, req.Actor, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// Retry handles POST /api/v1/payments/:reference/retry
func (h *PaymentHandler) Retry(c *gin.Context) {
	var req struct {
		OTPCode string `json:"otp_code"`
		Actor   string `json:"actor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": err.Error()}})
		return
	}

	result, err := h.service.Retry(c.Request.Context(), c.Param("reference"), req.OTPCode, req.Actor, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Refund handles POST /api/v1/admin/payments/:reference/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req struct {
		Amount *float64 `json:"amount"`
		Reason string   `json:"reason" binding:"required"`
		Actor  string   `json:"actor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": err.Error()}})
		return
	}

	payment, err := h.service.Refund(c.Request.Context(), c.Param("reference"), req.Amount, req.Reason, req.Actor, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// AuditTrail handles GET /api/v1/admin/payments/:reference/audit
func (h *PaymentHandler) AuditTrail(c *gin.Context) {
	entries, err := h.service.AuditTrail(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": entries})
}

// Statistics handles GET /api/v1/admin/payments/statistics
func (h *PaymentHandler) Statistics(c *gin.Context) {
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": "from must be RFC3339"}})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "validation_error", "message": "to must be RFC3339"}})
			return
		}
		to = t
	}

	stats, err := h.service.Statistics(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

// CleanupExpired handles POST /api/v1/admin/payments/cleanup-expired
func (h *PaymentHandler) CleanupExpired(c *gin.Context) {
	count, err := h.service.CleanupExpired(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": count})
}
