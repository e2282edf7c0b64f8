// internal/gateway/cash_on_delivery.go
package gateway

import (
	"context"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
)

// CashOnDeliveryGateway collects nothing upfront; the payment completes
// only when the linked delivery reports success.
type CashOnDeliveryGateway struct{}

func NewCashOnDeliveryGateway() *CashOnDeliveryGateway {
	return &CashOnDeliveryGateway{}
}

func (g *CashOnDeliveryGateway) Method() models.PaymentMethod {
	return models.MethodCashOnDelivery
}

func (g *CashOnDeliveryGateway) Process(ctx context.Context, payment *models.Payment, opts ProcessOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Status:  models.StatusProcessing,
		Message: "payment will be collected on delivery",
		Details: models.JSONMap{
			"provider": "cash_on_delivery",
		},
	}, nil
}
