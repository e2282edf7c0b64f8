// internal/gateway/orange_money.go
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/config"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
)

// SimulatedOutcome is what the simulation policy decides for an attempt.
type SimulatedOutcome int

const (
	OutcomeSuccess SimulatedOutcome = iota
	OutcomeInsufficientBalance
	OutcomeOTPRequired
	OutcomeInvalidOTP
)

// SimulationPolicy selects the provider outcome for a simulated attempt.
// A production deployment swaps this for an adapter making authenticated
// calls to the live Orange Money API; the gateway contract is unchanged.
type SimulationPolicy func(phone, otp string) SimulatedOutcome

// LastDigitPolicy drives outcomes off the customer phone's last digit:
// 0 fails with insufficient balance, 9 requires OTP confirmation, anything
// else succeeds directly.
func LastDigitPolicy(validOTP string) SimulationPolicy {
	return func(phone, otp string) SimulatedOutcome {
		if phone == "" {
			return OutcomeInsufficientBalance
		}
		switch phone[len(phone)-1] {
		case '0':
			return OutcomeInsufficientBalance
		case '9':
			if otp == "" {
				return OutcomeOTPRequired
			}
			if otp == validOTP {
				return OutcomeSuccess
			}
			return OutcomeInvalidOTP
		default:
			return OutcomeSuccess
		}
	}
}

// OrangeMoneyGateway settles payments through the Orange Money mobile
// wallet, two-phase when the provider demands OTP confirmation.
type OrangeMoneyGateway struct {
	cfg    config.OrangeMoneyConfig
	policy SimulationPolicy
}

func NewOrangeMoneyGateway(cfg config.OrangeMoneyConfig, policy SimulationPolicy) *OrangeMoneyGateway {
	if policy == nil {
		policy = LastDigitPolicy(cfg.ValidTestOTP)
	}
	return &OrangeMoneyGateway{cfg: cfg, policy: policy}
}

func (g *OrangeMoneyGateway) Method() models.PaymentMethod {
	return models.MethodOrangeMoney
}

func (g *OrangeMoneyGateway) Process(ctx context.Context, payment *models.Payment, opts ProcessOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch g.policy(payment.CustomerPhone, opts.OTPCode) {
	case OutcomeInsufficientBalance:
		return &Result{
			Success:     false,
			Status:      models.StatusFailed,
			Message:     "insufficient balance on Orange Money wallet",
			FailureCode: "insufficient_balance",
			Details: models.JSONMap{
				"provider":      "orange_money",
				"merchant_code": g.cfg.MerchantCode,
				"failure":       "insufficient_balance",
			},
		}, nil

	case OutcomeOTPRequired:
		return &Result{
			Success:     true,
			Status:      models.StatusPending,
			Message:     "OTP sent to customer phone, confirmation required",
			RequiresOTP: true,
			Details: models.JSONMap{
				"provider":      "orange_money",
				"merchant_code": g.cfg.MerchantCode,
				"otp_channel":   "sms",
			},
		}, nil

	case OutcomeInvalidOTP:
		return &Result{
			Success:     false,
			Status:      models.StatusFailed,
			Message:     "OTP confirmation rejected by provider",
			FailureCode: "invalid_otp",
			Details: models.JSONMap{
				"provider":      "orange_money",
				"merchant_code": g.cfg.MerchantCode,
				"failure":       "invalid_otp",
			},
		}, nil

	default:
		txnID := "OM-" + strings.ToUpper(uuid.New().String()[:12])
		return &Result{
			Success:       true,
			Status:        models.StatusProcessing,
			Message:       "payment accepted by Orange Money",
			TransactionID: txnID,
			PaymentURL:    fmt.Sprintf("%s/%s", g.cfg.PaymentBaseURL, payment.PaymentReference),
			Details: models.JSONMap{
				"provider":       "orange_money",
				"merchant_code":  g.cfg.MerchantCode,
				"transaction_id": txnID,
			},
		}, nil
	}
}
