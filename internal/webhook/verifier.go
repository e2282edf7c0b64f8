// internal/webhook/verifier.go
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
	"github.com/Fabricesimpore/Ecommerce-sub001/pkg/redis"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// Payload is the minimum contract a provider callback must satisfy.
type Payload struct {
	EventID       string `json:"event_id"`
	Reference     string `json:"reference"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// PaymentStore is the slice of the payment store the verifier needs.
type PaymentStore interface {
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	GetByProviderTransactionID(ctx context.Context, txnID string) (*models.Payment, error)
	TransitionStatus(ctx context.Context, paymentID string, to models.PaymentStatus, change models.StatusChange) (*models.Payment, bool, error)
}

// ReplayCache remembers provider event ids so byte-identical redeliveries
// short-circuit without touching the store.
type ReplayCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

// RedisReplayCache backs the replay cache with redis keys under a TTL.
type RedisReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReplayCache(client *redis.Client, ttl time.Duration) *RedisReplayCache {
	return &RedisReplayCache{client: client, ttl: ttl}
}

func (c *RedisReplayCache) Seen(ctx context.Context, eventID string) (bool, error) {
	return c.client.Exists(ctx, "webhook:event:"+eventID)
}

func (c *RedisReplayCache) MarkSeen(ctx context.Context, eventID string) error {
	// SetNX keeps the original TTL when the provider redelivers.
	_, err := c.client.SetNX(ctx, "webhook:event:"+eventID, "1", c.ttl)
	return err
}

// Verifier validates inbound provider callbacks and maps them onto a
// payment status transition.
type Verifier struct {
	secret []byte
	store  PaymentStore
	replay ReplayCache
	logger *zap.Logger
}

func NewVerifier(secret string, store PaymentStore, replay ReplayCache, logger *zap.Logger) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		store:  store,
		replay: replay,
		logger: logger,
	}
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body in constant
// time. Callers learn only whether it matched.
func (v *Verifier) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// mapProviderStatus translates a provider status code to the target
// payment status.
func mapProviderStatus(status string) (models.PaymentStatus, error) {
	switch strings.ToLower(status) {
	case "success", "successful", "completed", "paid":
		return models.StatusCompleted, nil
	case "failed", "failure", "declined":
		return models.StatusFailed, nil
	case "cancelled", "canceled":
		return models.StatusCancelled, nil
	case "processing", "pending_confirmation":
		return models.StatusProcessing, nil
	default:
		return "", &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown provider status %q", status)}
	}
}

// Handle verifies and applies one provider callback. Applied is false for
// at-least-once redeliveries whose transition is already satisfied; those
// produce no new audit row.
func (v *Verifier) Handle(ctx context.Context, body []byte, signature, ipAddress, userAgent string) (payment *models.Payment, applied bool, err error) {
	if !v.VerifySignature(body, signature) {
		v.logger.Warn("webhook signature mismatch", zap.String("ip", ipAddress))
		return nil, false, models.ErrInvalidSignature
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, &models.ValidationError{Field: "body", Reason: "malformed JSON payload"}
	}
	if payload.Reference == "" && payload.TransactionID == "" {
		return nil, false, &models.ValidationError{Field: "reference", Reason: "reference or transaction_id required"}
	}
	if payload.Status == "" {
		return nil, false, &models.ValidationError{Field: "status", Reason: "required"}
	}

	target, err := mapProviderStatus(payload.Status)
	if err != nil {
		return nil, false, err
	}

	if payload.EventID != "" && v.replay != nil {
		seen, err := v.replay.Seen(ctx, payload.EventID)
		if err != nil {
			v.logger.Warn("replay cache lookup failed", zap.Error(err))
		} else if seen {
			payment, err := v.lookup(ctx, payload)
			return payment, false, err
		}
	}

	payment, err = v.lookup(ctx, payload)
	if err != nil {
		return nil, false, err
	}

	if payment.Status == target {
		return payment, false, nil
	}

	var webhookData models.JSONMap
	if err := json.Unmarshal(body, &webhookData); err == nil {
		webhookData = models.JSONMap{"last_event": map[string]interface{}(webhookData)}
	}

	payment, applied, err = v.store.TransitionStatus(ctx, payment.ID, target, models.StatusChange{
		ChangedBy:   "webhook",
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Notes:       fmt.Sprintf("provider callback %s", payload.Status),
		WebhookData: webhookData,
	})
	if err != nil {
		return nil, false, err
	}

	if payload.EventID != "" && v.replay != nil {
		if err := v.replay.MarkSeen(ctx, payload.EventID); err != nil {
			v.logger.Warn("replay cache write failed", zap.Error(err))
		}
	}

	return payment, applied, nil
}

func (v *Verifier) lookup(ctx context.Context, payload Payload) (*models.Payment, error) {
	if payload.Reference != "" {
		return v.store.GetByReference(ctx, payload.Reference)
	}
	return v.store.GetByProviderTransactionID(ctx, payload.TransactionID)
}
