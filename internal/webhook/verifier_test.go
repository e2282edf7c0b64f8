// internal/webhook/verifier_test.go
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
)

const testSecret = "whsec_test"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeStore struct {
	payments map[string]*models.Payment
	audit    []models.AuditEntry
}

func newFakeStore(payments ...*models.Payment) *fakeStore {
	s := &fakeStore{payments: make(map[string]*models.Payment)}
	for _, p := range payments {
		s.payments[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	for _, p := range s.payments {
		if p.PaymentReference == reference {
			clone := *p
			return &clone, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *fakeStore) GetByProviderTransactionID(ctx context.Context, txnID string) (*models.Payment, error) {
	for _, p := range s.payments {
		if p.ProviderTransactionID == txnID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *fakeStore) TransitionStatus(ctx context.Context, paymentID string, to models.PaymentStatus, change models.StatusChange) (*models.Payment, bool, error) {
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, false, models.ErrNotFound
	}
	if p.Status == to {
		clone := *p
		return &clone, false, nil
	}
	if !models.CanTransition(p.Status, to) {
		return nil, false, &models.InvalidTransitionError{From: p.Status, To: to}
	}
	s.audit = append(s.audit, models.AuditEntry{
		PaymentID: paymentID,
		OldStatus: p.Status,
		NewStatus: to,
		ChangedAt: time.Now(),
		ChangedBy: change.ChangedBy,
	})
	p.Status = to
	if to == models.StatusCompleted {
		now := time.Now()
		p.CompletedAt = &now
	}
	clone := *p
	return &clone, true, nil
}

type fakeReplayCache struct {
	seen map[string]bool
}

func newFakeReplayCache() *fakeReplayCache {
	return &fakeReplayCache{seen: make(map[string]bool)}
}

func (c *fakeReplayCache) Seen(ctx context.Context, eventID string) (bool, error) {
	return c.seen[eventID], nil
}

func (c *fakeReplayCache) MarkSeen(ctx context.Context, eventID string) error {
	c.seen[eventID] = true
	return nil
}

func processingPayment() *models.Payment {
	return &models.Payment{
		ID:                    "pay-1",
		PaymentReference:      "PAY-1700000000-ABCDEF12",
		ProviderTransactionID: "OM-TXN1",
		Status:                models.StatusProcessing,
	}
}

func TestVerifySignature(t *testing.T) {
	v := NewVerifier(testSecret, newFakeStore(), newFakeReplayCache(), zap.NewNop())
	body := []byte(`{"reference":"PAY-1","status":"success"}`)

	if !v.VerifySignature(body, sign(body)) {
		t.Error("valid signature rejected")
	}
	if v.VerifySignature(body, "deadbeef") {
		t.Error("invalid signature accepted")
	}
	if v.VerifySignature(body, "") {
		t.Error("empty signature accepted")
	}
}

func TestHandleAppliesTransition(t *testing.T) {
	store := newFakeStore(processingPayment())
	v := NewVerifier(testSecret, store, newFakeReplayCache(), zap.NewNop())

	body, _ := json.Marshal(map[string]string{
		"event_id":  "evt-1",
		"reference": "PAY-1700000000-ABCDEF12",
		"status":    "success",
	})

	payment, applied, err := v.Handle(context.Background(), body, sign(body), "10.0.0.1", "provider/1.0")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if !applied {
		t.Fatal("expected transition to apply")
	}
	if payment.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", payment.Status)
	}
	if len(store.audit) != 1 {
		t.Errorf("audit rows = %d, want 1", len(store.audit))
	}
}

func TestHandleRejectsBadSignature(t *testing.T) {
	store := newFakeStore(processingPayment())
	v := NewVerifier(testSecret, store, newFakeReplayCache(), zap.NewNop())

	body := []byte(`{"reference":"PAY-1700000000-ABCDEF12","status":"success"}`)
	_, _, err := v.Handle(context.Background(), body, "bad", "10.0.0.1", "provider/1.0")
	if !errors.Is(err, models.ErrInvalidSignature) {
		t.Fatalf("error = %v, want ErrInvalidSignature", err)
	}
	if store.payments["pay-1"].Status != models.StatusProcessing {
		t.Error("payment mutated on rejected signature")
	}
	if len(store.audit) != 0 {
		t.Error("audit written on rejected signature")
	}
}

func TestHandleReplayIsNoOp(t *testing.T) {
	store := newFakeStore(processingPayment())
	replay := newFakeReplayCache()
	v := NewVerifier(testSecret, store, replay, zap.NewNop())

	body, _ := json.Marshal(map[string]string{
		"event_id":  "evt-1",
		"reference": "PAY-1700000000-ABCDEF12",
		"status":    "success",
	})
	sig := sign(body)

	if _, applied, err := v.Handle(context.Background(), body, sig, "10.0.0.1", "provider/1.0"); err != nil || !applied {
		t.Fatalf("first delivery: applied=%v err=%v", applied, err)
	}

	payment, applied, err := v.Handle(context.Background(), body, sig, "10.0.0.1", "provider/1.0")
	if err != nil {
		t.Fatalf("replay delivery error: %v", err)
	}
	if applied {
		t.Error("replay applied a second transition")
	}
	if payment.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", payment.Status)
	}
	if len(store.audit) != 1 {
		t.Errorf("audit rows = %d, want exactly 1 after replay", len(store.audit))
	}
}

func TestHandleIdempotentWithoutEventID(t *testing.T) {
	// Cold replay cache: the already-satisfied transition still no-ops.
	p := processingPayment()
	p.Status = models.StatusCompleted
	store := newFakeStore(p)
	v := NewVerifier(testSecret, store, newFakeReplayCache(), zap.NewNop())

	body, _ := json.Marshal(map[string]string{
		"reference": "PAY-1700000000-ABCDEF12",
		"status":    "success",
	})

	payment, applied, err := v.Handle(context.Background(), body, sign(body), "10.0.0.1", "provider/1.0")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if applied {
		t.Error("expected no-op for already-satisfied transition")
	}
	if payment.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", payment.Status)
	}
}

func TestHandleInvalidTransition(t *testing.T) {
	p := processingPayment()
	p.Status = models.StatusCancelled
	store := newFakeStore(p)
	v := NewVerifier(testSecret, store, newFakeReplayCache(), zap.NewNop())

	body, _ := json.Marshal(map[string]string{
		"reference": "PAY-1700000000-ABCDEF12",
		"status":    "success",
	})

	_, _, err := v.Handle(context.Background(), body, sign(body), "10.0.0.1", "provider/1.0")
	var invalid *models.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidTransitionError", err)
	}
	if store.payments["pay-1"].Status != models.StatusCancelled {
		t.Error("payment mutated on invalid transition")
	}
}

func TestHandleLookupByTransactionID(t *testing.T) {
	store := newFakeStore(processingPayment())
	v := NewVerifier(testSecret, store, newFakeReplayCache(), zap.NewNop())

	body, _ := json.Marshal(map[string]string{
		"transaction_id": "OM-TXN1",
		"status":         "failed",
	})

	payment, applied, err := v.Handle(context.Background(), body, sign(body), "10.0.0.1", "provider/1.0")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if !applied || payment.Status != models.StatusFailed {
		t.Errorf("applied=%v status=%s, want applied failed", applied, payment.Status)
	}
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	v := NewVerifier(testSecret, newFakeStore(), newFakeReplayCache(), zap.NewNop())

	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("not-json")},
		{"missing reference", []byte(`{"status":"success"}`)},
		{"missing status", []byte(`{"reference":"PAY-1"}`)},
		{"unknown provider status", []byte(`{"reference":"PAY-1","status":"definitely_not_a_status"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := v.Handle(context.Background(), tt.body, sign(tt.body), "10.0.0.1", "provider/1.0")
			var validation *models.ValidationError
			if !errors.As(err, &validation) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}
