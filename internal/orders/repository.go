package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchline/backend/internal/models"
)

const orderColumns = `id, customer_id, customer_name, customer_email, total_centavos, status, payment_status, customer_notes, created_at, updated_at`

// Repository handles order persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an orders repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail, &o.TotalCentavos,
		&o.Status, &o.PaymentStatus, &o.CustomerNotes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts an order.
func (r *Repository) Create(ctx context.Context, o *models.Order) error {
	const q = `INSERT INTO orders (customer_id, customer_name, customer_email, total_centavos, status, payment_status, customer_notes)
		VALUES ($1, $2, $3, $4, 'pending', 'pending', '')
		RETURNING ` + orderColumns
	created, err := scanOrder(r.pool.QueryRow(ctx, q, o.CustomerID, o.CustomerName, o.CustomerEmail, o.TotalCentavos))
	if err != nil {
		return err
	}
	*o = *created
	return nil
}

// GetByID returns an order by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// List returns orders, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status string) ([]*models.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// UpdateStatus transitions the order's fulfillment status. Cancelled and
// delivered are terminal; the guarded UPDATE makes an illegal transition a
// no-op reported via rows affected.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	const q = `UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('cancelled', 'delivered')`
	res, err := r.pool.Exec(ctx, q, id, string(status))
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found or already finalized", id)
	}
	return nil
}

// SetPaymentStatus writes the reconciled payment status.
func (r *Repository) SetPaymentStatus(ctx context.Context, id uuid.UUID, status models.OrderPaymentStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}

// AppendCustomerNote appends a line to the order's customer notes.
func (r *Repository) AppendCustomerNote(ctx context.Context, id uuid.UUID, note string) error {
	const q = `UPDATE orders
		SET customer_notes = CASE WHEN customer_notes = '' THEN $2 ELSE customer_notes || E'\n' || $2 END,
		    updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, note)
	return err
}
