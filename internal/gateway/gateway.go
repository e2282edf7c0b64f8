// internal/gateway/gateway.go
package gateway

import (
	"context"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
)

// Result is the outcome of a settlement attempt. Expected business
// failures (insufficient balance, invalid OTP) come back as Success=false
// with a FailureCode, never as an error; errors are reserved for transport
// problems such as timeouts.
type Result struct {
	Success       bool                   `json:"success"`
	Status        models.PaymentStatus   `json:"status"`
	Message       string                 `json:"message"`
	FailureCode   string                 `json:"failure_code,omitempty"`
	RequiresOTP   bool                   `json:"requires_otp,omitempty"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	PaymentURL    string                 `json:"payment_url,omitempty"`
	Instructions  map[string]string      `json:"instructions,omitempty"`
	Details       models.JSONMap         `json:"-"`
}

// ProcessOptions carries per-attempt inputs such as an OTP confirmation code.
type ProcessOptions struct {
	OTPCode string
}

// Gateway moves a pending payment toward settlement. New payment methods
// are added by implementing this interface and registering the variant.
type Gateway interface {
	Method() models.PaymentMethod
	Process(ctx context.Context, payment *models.Payment, opts ProcessOptions) (*Result, error)
}

// Registry maps payment methods to their gateway variant.
type Registry struct {
	gateways map[models.PaymentMethod]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[models.PaymentMethod]Gateway)}
	for _, g := range gateways {
		r.gateways[g.Method()] = g
	}
	return r
}

func (r *Registry) ForMethod(method models.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, models.ErrUnsupportedMethod
	}
	return g, nil
}
