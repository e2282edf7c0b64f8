// internal/service/orders.go
package service

import "context"

// Order is the read projection of the externally-owned order aggregate.
type Order struct {
	ID            string  `json:"id"`
	TotalAmount   float64 `json:"total_amount"`
	Currency      string  `json:"currency"`
	PaymentStatus string  `json:"payment_status"`
}

// OrderPaymentStatusPaid marks an order already settled; such orders
// refuse new payments.
const OrderPaymentStatusPaid = "paid"

// OrderService is the order collaborator. Orders live in their own
// transaction boundary; payments are created only after the order is
// confirmed to exist.
type OrderService interface {
	FindByID(ctx context.Context, orderID string) (*Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID, status, reference string) error
}
