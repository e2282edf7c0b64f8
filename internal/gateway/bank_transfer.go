// internal/gateway/bank_transfer.go
package gateway

import (
	"context"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/config"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
)

// BankTransferGateway hands the payer static transfer instructions and
// parks the payment in processing; settlement confirmation arrives later
// through a webhook or an admin action.
type BankTransferGateway struct {
	cfg config.BankTransferConfig
}

func NewBankTransferGateway(cfg config.BankTransferConfig) *BankTransferGateway {
	return &BankTransferGateway{cfg: cfg}
}

func (g *BankTransferGateway) Method() models.PaymentMethod {
	return models.MethodBankTransfer
}

func (g *BankTransferGateway) Process(ctx context.Context, payment *models.Payment, opts ProcessOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Status:  models.StatusProcessing,
		Message: "complete the transfer using the provided bank details",
		Instructions: map[string]string{
			"bank_name":      g.cfg.BankName,
			"account_number": g.cfg.AccountNumber,
			"account_name":   g.cfg.AccountName,
			"reference":      payment.PaymentReference,
		},
		Details: models.JSONMap{
			"provider":  "bank_transfer",
			"bank_name": g.cfg.BankName,
			"reference": payment.PaymentReference,
		},
	}, nil
}
