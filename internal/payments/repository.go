package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchline/backend/internal/models"
)

const paymentColumns = `id, order_id, amount_centavos, status, method, memo, reference_no, processed_by, refund_reason, created_at, updated_at`

// Repository handles payment ledger persistence and implements Ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.AmountCentavos, &p.Status, &p.Method, &p.Memo,
		&p.ReferenceNo, &p.ProcessedBy, &p.RefundReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a pending payment.
func (r *Repository) Create(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments (order_id, amount_centavos, status, method, memo, reference_no)
		VALUES ($1, $2, 'pending', $3, $4, $5)
		RETURNING ` + paymentColumns
	created, err := scanPayment(r.pool.QueryRow(ctx, q, p.OrderID, p.AmountCentavos, p.Method, p.Memo, p.ReferenceNo))
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

// GetByID returns a payment by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// ListByOrder returns the full ledger for an order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// VerifiedTotal returns the sum of verified payment amounts for an order.
func (r *Repository) VerifiedTotal(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_centavos), 0) FROM payments WHERE order_id = $1 AND status = 'verified'`,
		orderID).Scan(&total)
	return total, err
}

// Verify transitions a pending payment to verified. The guarded UPDATE
// rejects double verification.
func (r *Repository) Verify(ctx context.Context, id, processedBy uuid.UUID) (*models.Payment, error) {
	const q = `UPDATE payments SET status = 'verified', processed_by = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns
	p, err := scanPayment(r.pool.QueryRow(ctx, q, id, processedBy))
	if err != nil {
		return nil, fmt.Errorf("payment not found or not pending: %w", err)
	}
	return p, nil
}

// Decline transitions a pending payment to declined with a reason.
func (r *Repository) Decline(ctx context.Context, id, processedBy uuid.UUID, reason string) (*models.Payment, error) {
	const q = `UPDATE payments SET status = 'declined', processed_by = $2, memo = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns
	p, err := scanPayment(r.pool.QueryRow(ctx, q, id, processedBy, reason))
	if err != nil {
		return nil, fmt.Errorf("payment not found or not pending: %w", err)
	}
	return p, nil
}

// SetOrderPaymentStatus writes a reconciled payment status outside an
// allocation transaction (verification path).
func (r *Repository) SetOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status models.OrderPaymentStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`, orderID, string(status))
	return err
}

// GetOrder reads an order without locking (post-commit notification path).
func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	const q = `SELECT id, customer_id, customer_name, customer_email, total_centavos, status, payment_status, customer_notes, created_at, updated_at
		FROM orders WHERE id = $1`
	var o models.Order
	err := r.pool.QueryRow(ctx, q, orderID).Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail,
		&o.TotalCentavos, &o.Status, &o.PaymentStatus, &o.CustomerNotes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// WithinTx runs fn inside one database transaction. Any error rolls the
// whole transaction back.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

// ledgerTx implements LedgerTx over a pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) OrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	const q = `SELECT id, customer_id, customer_name, customer_email, total_centavos, status, payment_status, customer_notes, created_at, updated_at
		FROM orders WHERE id = $1 FOR UPDATE`
	var o models.Order
	err := t.tx.QueryRow(ctx, q, orderID).Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail,
		&o.TotalCentavos, &o.Status, &o.PaymentStatus, &o.CustomerNotes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *ledgerTx) VerifiedPaymentsForUpdate(ctx context.Context, orderID uuid.UUID) ([]*models.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1 AND status = 'verified'
		ORDER BY created_at
		FOR UPDATE`
	rows, err := t.tx.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (t *ledgerTx) MarkRefunded(ctx context.Context, paymentID uuid.UUID, reason string, actorID uuid.UUID) error {
	const q = `UPDATE payments SET status = 'refunded', refund_reason = $2, processed_by = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'verified'`
	res, err := t.tx.Exec(ctx, q, paymentID, reason, actorID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("payment %s is not verified", paymentID)
	}
	return nil
}

func (t *ledgerTx) ReduceAmount(ctx context.Context, paymentID uuid.UUID, newAmount int64) error {
	const q = `UPDATE payments SET amount_centavos = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'verified' AND $2 > 0`
	res, err := t.tx.Exec(ctx, q, paymentID, newAmount)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("payment %s is not verified or amount invalid", paymentID)
	}
	return nil
}

func (t *ledgerTx) InsertRefundEntry(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments (id, order_id, amount_centavos, status, method, memo, reference_no, processed_by, refund_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := t.tx.Exec(ctx, q, p.ID, p.OrderID, p.AmountCentavos, string(p.Status), p.Method, p.Memo, p.ReferenceNo, p.ProcessedBy, p.RefundReason)
	return err
}

func (t *ledgerTx) SetOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status models.OrderPaymentStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`, orderID, string(status))
	return err
}

func (t *ledgerTx) AppendCustomerNote(ctx context.Context, orderID uuid.UUID, note string) error {
	const q = `UPDATE orders
		SET customer_notes = CASE WHEN customer_notes = '' THEN $2 ELSE customer_notes || E'\n' || $2 END,
		    updated_at = NOW()
		WHERE id = $1`
	_, err := t.tx.Exec(ctx, q, orderID, note)
	return err
}
