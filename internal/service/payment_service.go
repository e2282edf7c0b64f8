// internal/service/payment_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/config"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/gateway"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/metrics"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/webhook"
)

// PaymentStore is the persistence boundary of the orchestrator. The
// Postgres repository implements it; tests provide an in-memory fake.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	GetByProviderTransactionID(ctx context.Context, txnID string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]*models.Payment, error)
	TransitionStatus(ctx context.Context, paymentID string, to models.PaymentStatus, change models.StatusChange) (*models.Payment, bool, error)
	UpdateRiskAssessment(ctx context.Context, paymentID string, score int, flags []string) error
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]string, error)
	Statistics(ctx context.Context, from, to time.Time) ([]models.StatisticsRow, error)
	ListAudit(ctx context.Context, paymentID string) ([]*models.AuditEntry, error)
	CountByOrder(ctx context.Context, orderID string) (int, error)
}

// IdempotencyCache remembers initiate results by caller-supplied key. The
// redis client satisfies it; tests provide an in-memory map.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// PaymentService orchestrates the payment lifecycle: validation, order
// lookup, fee computation, fraud screening, gateway dispatch and the
// post-settlement operations.
type PaymentService struct {
	store    PaymentStore
	orders   OrderService
	gateways *gateway.Registry
	scorer   *FraudScorer
	verifier *webhook.Verifier
	cache    IdempotencyCache
	cfg      config.PaymentConfig
	logger   *zap.Logger
}

func NewPaymentService(
	store PaymentStore,
	orders OrderService,
	gateways *gateway.Registry,
	scorer *FraudScorer,
	verifier *webhook.Verifier,
	cache IdempotencyCache,
	cfg config.PaymentConfig,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		store:    store,
		orders:   orders,
		gateways: gateways,
		scorer:   scorer,
		verifier: verifier,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

type InitiateRequest struct {
	OrderID        string               `json:"order_id" binding:"required"`
	Method         models.PaymentMethod `json:"method" binding:"required"`
	CustomerPhone  string               `json:"customer_phone"`
	CustomerName   string               `json:"customer_name"`
	CustomerEmail  string               `json:"customer_email"`
	OTPCode        string               `json:"otp_code"`
	IdempotencyKey string               `json:"idempotency_key"`

	Actor     string `json:"-"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type InitiateResult struct {
	Payment *models.Payment `json:"payment"`
	Gateway *gateway.Result `json:"gateway,omitempty"`
}

// Initiate turns an order into a payment attempt: validates input, loads
// the order, computes fees, creates the pending record, screens it for
// fraud and dispatches to the matching settlement gateway.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := s.validateInitiate(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if cached := s.getIdempotentPayment(ctx, req.IdempotencyKey); cached != nil {
			return &InitiateResult{Payment: cached}, nil
		}
	}

	order, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == OrderPaymentStatusPaid {
		return nil, &models.ValidationError{Field: "order_id", Reason: "order is already paid"}
	}
	if order.TotalAmount < s.cfg.MinAmount {
		return nil, &models.ValidationError{Field: "amount", Reason: fmt.Sprintf("order total below minimum payable amount %.0f", s.cfg.MinAmount)}
	}

	fee, err := CalculateFee(req.Method, order.TotalAmount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	currency := order.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	payment := &models.Payment{
		ID:               uuid.New().String(),
		PaymentReference: newPaymentReference(),
		OrderID:          order.ID,
		Amount:           order.TotalAmount,
		Currency:         currency,
		Fees:             fee,
		NetAmount:        order.TotalAmount - fee,
		Method:           req.Method,
		Status:           models.StatusPending,
		CustomerPhone:    req.CustomerPhone,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		IPAddress:        req.IPAddress,
		UserAgent:        req.UserAgent,
		CreatedBy:        req.Actor,
		InitiatedAt:      now,
		ExpiresAt:        now.Add(s.methodTTL(req.Method)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	metrics.PaymentsInitiated.WithLabelValues(string(req.Method)).Inc()

	screening := s.scorer.Screen(ScreenRequest{
		Amount:        payment.Amount,
		CustomerPhone: payment.CustomerPhone,
		Method:        payment.Method,
	})
	if err := s.store.UpdateRiskAssessment(ctx, payment.ID, screening.Score, screening.Flags); err != nil {
		return nil, fmt.Errorf("failed to record risk assessment: %w", err)
	}
	payment.RiskScore = screening.Score
	payment.FraudFlags = screening.Flags

	if screening.Recommendation == RecommendationBlock {
		_, _, err := s.store.TransitionStatus(ctx, payment.ID, models.StatusFailed, models.StatusChange{
			ChangedBy: "fraud_screening",
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			Notes:     "fraud_detected",
			ErrorDetails: models.JSONMap{
				"reason": "fraud_detected",
				"score":  screening.Score,
				"flags":  screening.Flags,
			},
		})
		if err != nil {
			return nil, err
		}
		metrics.FraudBlocked.Inc()
		return nil, &models.FraudBlockedError{Score: screening.Score, Flags: screening.Flags}
	}

	result, err := s.dispatch(ctx, payment, gateway.ProcessOptions{OTPCode: req.OTPCode}, req.Actor, req.IPAddress, req.UserAgent)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		s.cacheIdempotentPayment(ctx, req.IdempotencyKey, result.Payment)
	}

	return result, nil
}

// dispatch runs the gateway call under the configured timeout and applies
// the resulting transition. A timeout fails the payment with a
// gateway_timeout marker rather than leaving it stuck.
func (s *PaymentService) dispatch(ctx context.Context, payment *models.Payment, opts gateway.ProcessOptions, actor, ipAddress, userAgent string) (*InitiateResult, error) {
	gw, err := s.gateways.ForMethod(payment.Method)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	result, err := gw.Process(gctx, payment, opts)
	metrics.GatewayLatency.WithLabelValues(string(payment.Method)).Observe(time.Since(start).Seconds())

	if err != nil {
		code := "gateway_error"
		if errors.Is(err, context.DeadlineExceeded) {
			code = "gateway_timeout"
		}
		_, _, terr := s.store.TransitionStatus(ctx, payment.ID, models.StatusFailed, models.StatusChange{
			ChangedBy: actor,
			IPAddress: ipAddress,
			UserAgent: userAgent,
			Notes:     code,
			ErrorDetails: models.JSONMap{
				"code":  code,
				"error": err.Error(),
			},
		})
		if terr != nil {
			s.logger.Error("failed to fail payment after gateway error",
				zap.Error(terr), zap.String("payment_id", payment.ID))
		}
		return nil, &models.GatewayError{Code: code, Message: "settlement provider unavailable", Err: err}
	}

	switch {
	case result.RequiresOTP:
		// Payment stays pending until the OTP confirmation attempt.

	case !result.Success:
		payment, _, err = s.store.TransitionStatus(ctx, payment.ID, models.StatusFailed, models.StatusChange{
			ChangedBy:       actor,
			IPAddress:       ipAddress,
			UserAgent:       userAgent,
			Notes:           result.FailureCode,
			GatewayResponse: result.Details,
			ErrorDetails: models.JSONMap{
				"code":    result.FailureCode,
				"message": result.Message,
			},
		})
		if err != nil {
			return nil, err
		}
		metrics.PaymentTransitions.WithLabelValues(string(models.StatusFailed)).Inc()

	default:
		payment, _, err = s.store.TransitionStatus(ctx, payment.ID, result.Status, models.StatusChange{
			ChangedBy:             actor,
			IPAddress:             ipAddress,
			UserAgent:             userAgent,
			Notes:                 "gateway accepted",
			ProviderTransactionID: result.TransactionID,
			GatewayResponse:       result.Details,
		})
		if err != nil {
			return nil, err
		}
		metrics.PaymentTransitions.WithLabelValues(string(result.Status)).Inc()
	}

	return &InitiateResult{Payment: payment, Gateway: result}, nil
}

// Verify is a read-only status lookup by payment reference.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*models.Payment, error) {
	return s.store.GetByReference(ctx, reference)
}

// ListByOrder returns every payment ever created for an order.
func (s *PaymentService) ListByOrder(ctx context.Context, orderID string) ([]*models.Payment, error) {
	return s.store.ListByOrder(ctx, orderID)
}

// Cancel moves a pending or processing payment to cancelled, recording the
// reason. Any other source status surfaces InvalidTransition.
func (s *PaymentService) Cancel(ctx context.Context, reference, reason, actor, ipAddress, userAgent string) (*models.Payment, error) {
	payment, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	payment, _, err = s.store.TransitionStatus(ctx, payment.ID, models.StatusCancelled, models.StatusChange{
		ChangedBy: actor,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Notes:     reason,
		ErrorDetails: models.JSONMap{
			"cancel_reason": reason,
		},
	})
	if err != nil {
		return nil, err
	}
	metrics.PaymentTransitions.WithLabelValues(string(models.StatusCancelled)).Inc()
	return payment, nil
}

// Retry creates a fresh payment for the same order and customer snapshot.
// The old payment is never mutated; history is preserved.
func (s *PaymentService) Retry(ctx context.Context, reference, otpCode, actor, ipAddress, userAgent string) (*InitiateResult, error) {
	old, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !old.CanRetry() {
		return nil, &models.InvalidTransitionError{From: old.Status, To: models.StatusPending}
	}

	attempts, err := s.store.CountByOrder(ctx, old.OrderID)
	if err != nil {
		return nil, err
	}
	if attempts > s.cfg.MaxRetries {
		return nil, models.ErrRetryLimitReached
	}

	return s.Initiate(ctx, InitiateRequest{
		OrderID:       old.OrderID,
		Method:        old.Method,
		CustomerPhone: old.CustomerPhone,
		CustomerName:  old.CustomerName,
		CustomerEmail: old.CustomerEmail,
		OTPCode:       otpCode,
		Actor:         actor,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
	})
}

// Refund moves a completed payment to refunded. Amount defaults to the
// full payment amount; partial refunds keep the metadata on the record.
func (s *PaymentService) Refund(ctx context.Context, reference string, amount *float64, reason, actor, ipAddress, userAgent string) (*models.Payment, error) {
	payment, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	refundAmount := payment.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount <= 0 || refundAmount > payment.Amount {
		return nil, &models.ValidationError{Field: "amount", Reason: "refund amount must be positive and at most the payment amount"}
	}

	payment, applied, err := s.store.TransitionStatus(ctx, payment.ID, models.StatusRefunded, models.StatusChange{
		ChangedBy: actor,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Notes:     reason,
		GatewayResponse: models.JSONMap{
			"refund": map[string]interface{}{
				"amount":      refundAmount,
				"reason":      reason,
				"refunded_by": actor,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// Already refunded; a repeat must not rewrite the recorded metadata
		// or re-notify the order service.
		return nil, &models.InvalidTransitionError{From: payment.Status, To: models.StatusRefunded}
	}
	metrics.PaymentTransitions.WithLabelValues(string(models.StatusRefunded)).Inc()

	if err := s.orders.UpdatePaymentStatus(ctx, payment.OrderID, "refunded", payment.PaymentReference); err != nil {
		s.logger.Warn("order refund notification failed",
			zap.Error(err), zap.String("order_id", payment.OrderID))
	}

	return payment, nil
}

// CleanupExpired sweeps pending payments past their expiry into expired.
// Each expiry is its own conditional transition, so the sweep is safe to
// run concurrently with normal traffic and with itself.
func (s *PaymentService) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := s.store.ListExpiredPending(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	var expired int
	for _, id := range ids {
		_, applied, err := s.store.TransitionStatus(ctx, id, models.StatusExpired, models.StatusChange{
			ChangedBy: "system",
			Notes:     "expired by cleanup sweep",
		})
		if err != nil {
			var invalid *models.InvalidTransitionError
			if errors.As(err, &invalid) {
				// A racing writer moved it first; benign.
				continue
			}
			return expired, err
		}
		if applied {
			expired++
		}
	}

	if expired > 0 {
		metrics.ExpiredPayments.Add(float64(expired))
		s.logger.Info("expiry sweep reclaimed payments", zap.Int("count", expired))
	}
	return expired, nil
}

// RunExpirySweeper runs CleanupExpired on an interval until ctx is done.
func (s *PaymentService) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupExpired(ctx); err != nil {
				s.logger.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// Statistics aggregates payments by method and status over a date range,
// defaulting to the trailing month.
func (s *PaymentService) Statistics(ctx context.Context, from, to time.Time) ([]models.StatisticsRow, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	return s.store.Statistics(ctx, from, to)
}

// AuditTrail returns the transition history of a payment.
func (s *PaymentService) AuditTrail(ctx context.Context, reference string) ([]*models.AuditEntry, error) {
	payment, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, payment.ID)
}

// ApplyWebhook verifies and applies a provider callback, then notifies the
// order collaborator of settlement outcomes.
func (s *PaymentService) ApplyWebhook(ctx context.Context, body []byte, signature, ipAddress, userAgent string) (*models.Payment, bool, error) {
	payment, applied, err := s.verifier.Handle(ctx, body, signature, ipAddress, userAgent)
	if err != nil {
		verdict := "rejected"
		if errors.Is(err, models.ErrInvalidSignature) {
			verdict = "rejected_signature"
		}
		metrics.WebhookEvents.WithLabelValues(verdict).Inc()
		return nil, false, err
	}

	if !applied {
		metrics.WebhookEvents.WithLabelValues("replayed").Inc()
		return payment, false, nil
	}
	metrics.WebhookEvents.WithLabelValues("applied").Inc()
	metrics.PaymentTransitions.WithLabelValues(string(payment.Status)).Inc()

	if payment.Status == models.StatusCompleted {
		if err := s.orders.UpdatePaymentStatus(ctx, payment.OrderID, OrderPaymentStatusPaid, payment.PaymentReference); err != nil {
			s.logger.Warn("order payment notification failed",
				zap.Error(err), zap.String("order_id", payment.OrderID))
		}
	}

	return payment, true, nil
}

func (s *PaymentService) validateInitiate(req InitiateRequest) error {
	if req.OrderID == "" {
		return &models.ValidationError{Field: "order_id", Reason: "required"}
	}
	if !models.ValidMethod(req.Method) {
		return models.ErrUnsupportedMethod
	}
	if req.Method == models.MethodOrangeMoney {
		if req.CustomerPhone == "" {
			return &models.ValidationError{Field: "customer_phone", Reason: "required for orange_money"}
		}
		if !ValidPhone(req.CustomerPhone) {
			return &models.ValidationError{Field: "customer_phone", Reason: "must be +226 followed by 8 digits"}
		}
	}
	return nil
}

func (s *PaymentService) methodTTL(method models.PaymentMethod) time.Duration {
	switch method {
	case models.MethodOrangeMoney:
		return s.cfg.OrangeMoneyTTL
	case models.MethodBankTransfer:
		return s.cfg.BankTransferTTL
	default:
		return s.cfg.CashOnDeliveryTTL
	}
}

func (s *PaymentService) getIdempotentPayment(ctx context.Context, key string) *models.Payment {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, "payment:idempotency:"+key)
	if err != nil {
		return nil
	}
	var payment models.Payment
	if err := json.Unmarshal([]byte(data), &payment); err != nil {
		return nil
	}
	return &payment
}

func (s *PaymentService) cacheIdempotentPayment(ctx context.Context, key string, payment *models.Payment) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(payment)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, "payment:idempotency:"+key, data, s.cfg.IdempotencyKeyTTL); err != nil {
		s.logger.Warn("idempotency cache write failed", zap.Error(err))
	}
}

func newPaymentReference() string {
	return fmt.Sprintf("PAY-%d-%s", time.Now().Unix(), strings.ToUpper(uuid.New().String()[:8]))
}
