// internal/repository/payment_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, payment_reference, order_id, amount, currency, fees, net_amount,
	method, status, customer_phone, customer_name, customer_email, risk_score, fraud_flags,
	ip_address, user_agent, created_by, provider_transaction_id,
	gateway_response, webhook_data, error_details,
	initiated_at, expires_at, completed_at, failed_at, cancelled_at, refunded_at, expired_at,
	created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var phone, name, email, ip, ua, createdBy, providerTxn sql.NullString
	err := row.Scan(
		&p.ID, &p.PaymentReference, &p.OrderID, &p.Amount, &p.Currency, &p.Fees, &p.NetAmount,
		&p.Method, &p.Status, &phone, &name, &email, &p.RiskScore, pq.Array(&p.FraudFlags),
		&ip, &ua, &createdBy, &providerTxn,
		&p.GatewayResponse, &p.WebhookData, &p.ErrorDetails,
		&p.InitiatedAt, &p.ExpiresAt, &p.CompletedAt, &p.FailedAt, &p.CancelledAt, &p.RefundedAt, &p.ExpiredAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CustomerPhone = phone.String
	p.CustomerName = name.String
	p.CustomerEmail = email.String
	p.IPAddress = ip.String
	p.UserAgent = ua.String
	p.CreatedBy = createdBy.String
	p.ProviderTransactionID = providerTxn.String
	return p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (
			id, payment_reference, order_id, amount, currency, fees, net_amount,
			method, status, customer_phone, customer_name, customer_email,
			risk_score, fraud_flags, ip_address, user_agent, created_by,
			gateway_response, webhook_data, error_details,
			initiated_at, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.PaymentReference,
		payment.OrderID,
		payment.Amount,
		payment.Currency,
		payment.Fees,
		payment.NetAmount,
		payment.Method,
		payment.Status,
		payment.CustomerPhone,
		payment.CustomerName,
		payment.CustomerEmail,
		payment.RiskScore,
		pq.Array(payment.FraudFlags),
		payment.IPAddress,
		payment.UserAgent,
		payment.CreatedBy,
		payment.GatewayResponse,
		payment.WebhookData,
		payment.ErrorDetails,
		payment.InitiatedAt,
		payment.ExpiresAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	return r.getBy(ctx, "payment_reference", reference)
}

func (r *PaymentRepository) GetByProviderTransactionID(ctx context.Context, txnID string) (*models.Payment, error) {
	return r.getBy(ctx, "provider_transaction_id", txnID)
}

func (r *PaymentRepository) getBy(ctx context.Context, column, value string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s = $1`, paymentColumns, column)
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	return payment, err
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE order_id = $1 ORDER BY created_at DESC`, paymentColumns)

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// timestampColumns maps each status reached by a transition to the column
// set exactly once when the payment arrives there.
var timestampColumns = map[models.PaymentStatus]string{
	models.StatusCompleted: "completed_at",
	models.StatusFailed:    "failed_at",
	models.StatusCancelled: "cancelled_at",
	models.StatusRefunded:  "refunded_at",
	models.StatusExpired:   "expired_at",
}

// TransitionStatus is the only writer of payments.status. It locks the row,
// validates the move against the transition table, applies the status and
// its timestamp in one UPDATE and appends the audit row inside the same
// transaction. Requesting the status the payment already holds is an
// idempotent no-op: applied=false, no audit row, no error.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, paymentID string, to models.PaymentStatus, change models.StatusChange) (*models.Payment, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var current models.PaymentStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM payments WHERE id = $1 FOR UPDATE`, paymentID).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, false, models.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if current == to {
		payment, err := r.GetByID(ctx, paymentID)
		return payment, false, err
	}
	if !models.CanTransition(current, to) {
		return nil, false, &models.InvalidTransitionError{From: current, To: to}
	}

	now := time.Now().UTC()
	query := `UPDATE payments SET status = $1, updated_at = $2`
	args := []interface{}{to, now}

	if column, ok := timestampColumns[to]; ok {
		args = append(args, now)
		query += fmt.Sprintf(", %s = $%d", column, len(args))
	}
	if change.ProviderTransactionID != "" {
		args = append(args, change.ProviderTransactionID)
		query += fmt.Sprintf(", provider_transaction_id = $%d", len(args))
	}
	if change.GatewayResponse != nil {
		args = append(args, change.GatewayResponse)
		query += fmt.Sprintf(", gateway_response = COALESCE(gateway_response, '{}'::jsonb) || $%d", len(args))
	}
	if change.WebhookData != nil {
		args = append(args, change.WebhookData)
		query += fmt.Sprintf(", webhook_data = COALESCE(webhook_data, '{}'::jsonb) || $%d", len(args))
	}
	if change.ErrorDetails != nil {
		args = append(args, change.ErrorDetails)
		query += fmt.Sprintf(", error_details = COALESCE(error_details, '{}'::jsonb) || $%d", len(args))
	}

	args = append(args, paymentID)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, false, err
	}

	auditQuery := `
		INSERT INTO payment_audit_log (id, payment_id, old_status, new_status, changed_at, changed_by, ip_address, user_agent, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.ExecContext(ctx, auditQuery,
		uuid.New().String(),
		paymentID,
		current,
		to,
		now,
		change.ChangedBy,
		change.IPAddress,
		change.UserAgent,
		change.Notes,
	)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	payment, err := r.GetByID(ctx, paymentID)
	return payment, true, err
}

// UpdateRiskAssessment records the screening outcome on a freshly created
// payment. Status is untouched.
func (r *PaymentRepository) UpdateRiskAssessment(ctx context.Context, paymentID string, score int, flags []string) error {
	query := `UPDATE payments SET risk_score = $1, fraud_flags = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, score, pq.Array(flags), time.Now().UTC(), paymentID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListExpiredPending returns ids of pending payments past their expiry.
// The sweep transitions each one through TransitionStatus so every expiry
// stays its own atomic conditional update.
func (r *PaymentRepository) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `SELECT id FROM payments WHERE status = $1 AND expires_at < $2`

	rows, err := r.db.QueryContext(ctx, query, models.StatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Statistics aggregates payments by method and status over a date range.
func (r *PaymentRepository) Statistics(ctx context.Context, from, to time.Time) ([]models.StatisticsRow, error) {
	query := `
		SELECT method, status, COUNT(*), COALESCE(SUM(amount), 0), COALESCE(AVG(amount), 0), COALESCE(SUM(fees), 0)
		FROM payments
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY method, status
		ORDER BY method, status
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.StatisticsRow
	for rows.Next() {
		var row models.StatisticsRow
		err := rows.Scan(&row.Method, &row.Status, &row.Count, &row.TotalAmount, &row.AverageAmount, &row.TotalFees)
		if err != nil {
			return nil, err
		}
		stats = append(stats, row)
	}
	return stats, rows.Err()
}

// ListAudit returns the append-only audit trail for a payment, oldest first.
func (r *PaymentRepository) ListAudit(ctx context.Context, paymentID string) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, payment_id, old_status, new_status, changed_at, changed_by, ip_address, user_agent, notes
		FROM payment_audit_log
		WHERE payment_id = $1
		ORDER BY changed_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry := &models.AuditEntry{}
		var changedBy, ip, ua, notes sql.NullString
		err := rows.Scan(&entry.ID, &entry.PaymentID, &entry.OldStatus, &entry.NewStatus,
			&entry.ChangedAt, &changedBy, &ip, &ua, &notes)
		if err != nil {
			return nil, err
		}
		entry.ChangedBy = changedBy.String
		entry.IPAddress = ip.String
		entry.UserAgent = ua.String
		entry.Notes = notes.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByOrder counts payments ever created for an order, retries included.
func (r *PaymentRepository) CountByOrder(ctx context.Context, orderID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE order_id = $1`, orderID).Scan(&count)
	return count, err
}
