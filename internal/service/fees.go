// internal/service/fees.go
package service

import (
	"math"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
)

// CalculateFee returns the processing fee for a method and amount.
// Deterministic, no side effects; the net amount a merchant receives is
// always amount minus this fee.
//
//   - orange_money: 1.5% + 50, capped at a flat 2% of the amount
//   - bank_transfer: 1% + 100, capped at an absolute 500
//   - cash_on_delivery: free
func CalculateFee(method models.PaymentMethod, amount float64) (float64, error) {
	switch method {
	case models.MethodOrangeMoney:
		return math.Min(amount*0.015+50, amount*0.02), nil
	case models.MethodBankTransfer:
		return math.Min(amount*0.01+100, 500), nil
	case models.MethodCashOnDelivery:
		return 0, nil
	default:
		return 0, models.ErrUnsupportedMethod
	}
}
