// internal/models/payment.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type PaymentMethod string
type PaymentStatus string

const (
	MethodOrangeMoney    PaymentMethod = "orange_money"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
	StatusRefunded   PaymentStatus = "refunded"
	StatusExpired    PaymentStatus = "expired"
)

// DefaultCurrency is the settlement currency for the reference market.
const DefaultCurrency = "XOF"

// allowedTransitions is the complete status graph. Status is only ever
// written through the store's conditional transition, which consults this
// table; terminal statuses have no outgoing edges.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:    {StatusProcessing, StatusFailed, StatusCancelled, StatusExpired},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:  {StatusRefunded},
	StatusFailed:     {},
	StatusCancelled:  {},
	StatusRefunded:   {},
	StatusExpired:    {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to PaymentStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// AllowedSources returns every status that may transition into target.
// The repository uses this as the guard set of the conditional UPDATE.
func AllowedSources(target PaymentStatus) []PaymentStatus {
	var sources []PaymentStatus
	for from, targets := range allowedTransitions {
		for _, t := range targets {
			if t == target {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status PaymentStatus) bool {
	return len(allowedTransitions[status]) == 0
}

// ValidMethod reports whether the method belongs to the closed method set.
func ValidMethod(method PaymentMethod) bool {
	switch method {
	case MethodOrangeMoney, MethodBankTransfer, MethodCashOnDelivery:
		return true
	}
	return false
}

// AllStatuses lists every payment status, useful for exhaustive checks.
func AllStatuses() []PaymentStatus {
	return []PaymentStatus{
		StatusPending, StatusProcessing, StatusCompleted,
		StatusFailed, StatusCancelled, StatusRefunded, StatusExpired,
	}
}

// JSONMap is an opaque key/value blob stored as JSONB. Gateway responses,
// webhook payloads and error details land here; core logic never branches
// on their contents.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", src)
	}
	return json.Unmarshal(data, m)
}

type Payment struct {
	ID                     string        `json:"id" db:"id"`
	PaymentReference       string        `json:"payment_reference" db:"payment_reference"`
	OrderID                string        `json:"order_id" db:"order_id"`
	Amount                 float64       `json:"amount" db:"amount"`
	Currency               string        `json:"currency" db:"currency"`
	Fees                   float64       `json:"fees" db:"fees"`
	NetAmount              float64       `json:"net_amount" db:"net_amount"`
	Method                 PaymentMethod `json:"method" db:"method"`
	Status                 PaymentStatus `json:"status" db:"status"`
	CustomerPhone          string        `json:"customer_phone,omitempty" db:"customer_phone"`
	CustomerName           string        `json:"customer_name,omitempty" db:"customer_name"`
	CustomerEmail          string        `json:"customer_email,omitempty" db:"customer_email"`
	RiskScore              int           `json:"risk_score" db:"risk_score"`
	FraudFlags             []string      `json:"fraud_flags,omitempty" db:"fraud_flags"`
	IPAddress              string        `json:"-" db:"ip_address"`
	UserAgent              string        `json:"-" db:"user_agent"`
	CreatedBy              string        `json:"created_by,omitempty" db:"created_by"`
	ProviderTransactionID  string        `json:"provider_transaction_id,omitempty" db:"provider_transaction_id"`
	GatewayResponse        JSONMap       `json:"-" db:"gateway_response"`
	WebhookData            JSONMap       `json:"-" db:"webhook_data"`
	ErrorDetails           JSONMap       `json:"-" db:"error_details"`
	InitiatedAt            time.Time     `json:"initiated_at" db:"initiated_at"`
	ExpiresAt              time.Time     `json:"expires_at" db:"expires_at"`
	CompletedAt            *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt               *time.Time    `json:"failed_at,omitempty" db:"failed_at"`
	CancelledAt            *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	RefundedAt             *time.Time    `json:"refunded_at,omitempty" db:"refunded_at"`
	ExpiredAt              *time.Time    `json:"expired_at,omitempty" db:"expired_at"`
	CreatedAt              time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at" db:"updated_at"`
}

// CanRetry reports whether a fresh payment may be created for the same order.
func (p *Payment) CanRetry() bool {
	switch p.Status {
	case StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// StatusChange carries the context of a single status transition: who made
// it, where from, and any provider payload to attach. Blob fields are merged
// into the existing JSONB columns, never parsed by the store.
type StatusChange struct {
	ChangedBy             string
	IPAddress             string
	UserAgent             string
	Notes                 string
	ProviderTransactionID string
	GatewayResponse       JSONMap
	WebhookData           JSONMap
	ErrorDetails          JSONMap
}

// AuditEntry is one append-only row of the payment audit log.
type AuditEntry struct {
	ID        string        `json:"id" db:"id"`
	PaymentID string        `json:"payment_id" db:"payment_id"`
	OldStatus PaymentStatus `json:"old_status" db:"old_status"`
	NewStatus PaymentStatus `json:"new_status" db:"new_status"`
	ChangedAt time.Time     `json:"changed_at" db:"changed_at"`
	ChangedBy string        `json:"changed_by" db:"changed_by"`
	IPAddress string        `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string        `json:"user_agent,omitempty" db:"user_agent"`
	Notes     string        `json:"notes,omitempty" db:"notes"`
}

// StatisticsRow is one aggregate bucket of the statistics report.
type StatisticsRow struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	Count         int64         `json:"count"`
	TotalAmount   float64       `json:"total_amount"`
	AverageAmount float64       `json:"average_amount"`
	TotalFees     float64       `json:"total_fees"`
}

// Database schema
const PaymentSchema = `
CREATE TABLE IF NOT EXISTS payments (
    id VARCHAR(36) PRIMARY KEY,
    payment_reference VARCHAR(64) NOT NULL UNIQUE,
    order_id VARCHAR(36) NOT NULL,
    amount DECIMAL(19, 4) NOT NULL,
    currency VARCHAR(3) NOT NULL DEFAULT 'XOF',
    fees DECIMAL(19, 4) NOT NULL DEFAULT 0,
    net_amount DECIMAL(19, 4) NOT NULL,
    method VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL,
    customer_phone VARCHAR(20),
    customer_name VARCHAR(255),
    customer_email VARCHAR(255),
    risk_score INT NOT NULL DEFAULT 0,
    fraud_flags TEXT[],
    ip_address VARCHAR(45),
    user_agent TEXT,
    created_by VARCHAR(64),
    provider_transaction_id VARCHAR(64),
    gateway_response JSONB,
    webhook_data JSONB,
    error_details JSONB,
    initiated_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    failed_at TIMESTAMP,
    cancelled_at TIMESTAMP,
    refunded_at TIMESTAMP,
    expired_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments (order_id);
CREATE INDEX IF NOT EXISTS idx_payments_status ON payments (status);
CREATE INDEX IF NOT EXISTS idx_payments_expires_at ON payments (expires_at);
CREATE INDEX IF NOT EXISTS idx_payments_provider_txn ON payments (provider_transaction_id);
CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments (created_at);
`

const AuditSchema = `
CREATE TABLE IF NOT EXISTS payment_audit_log (
    id VARCHAR(36) PRIMARY KEY,
    payment_id VARCHAR(36) NOT NULL REFERENCES payments(id),
    old_status VARCHAR(20) NOT NULL,
    new_status VARCHAR(20) NOT NULL,
    changed_at TIMESTAMP NOT NULL DEFAULT NOW(),
    changed_by VARCHAR(64),
    ip_address VARCHAR(45),
    user_agent TEXT,
    notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_payment_id ON payment_audit_log (payment_id);
CREATE INDEX IF NOT EXISTS idx_audit_changed_at ON payment_audit_log (changed_at);
`
