package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchline/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an email log row and fills generated fields.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (order_id, email_type, recipient_email, subject, amount_centavos, remaining_centavos, reason, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, el.OrderID, el.EmailType, el.RecipientEmail, el.Subject,
		el.AmountCentavos, el.RemainingCentavos, el.Reason, el.Status, el.SentAt, el.ErrorMessage).
		Scan(&el.ID, &el.CreatedAt)
}

// GetByID returns one email log.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	const q = `SELECT id, order_id, email_type, recipient_email, subject, amount_centavos, remaining_centavos, reason, status, sent_at, error_message, created_at
		FROM email_logs WHERE id = $1`
	var el models.EmailLog
	err := r.pool.QueryRow(ctx, q, id).Scan(&el.ID, &el.OrderID, &el.EmailType, &el.RecipientEmail, &el.Subject,
		&el.AmountCentavos, &el.RemainingCentavos, &el.Reason, &el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &el, nil
}

// MarkSent updates an email log to sent.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, sent_at = $3, error_message = '' WHERE id = $1`,
		id, models.EmailLogStatusSent, at)
	return err
}

// MarkFailed updates an email log to failed with the delivery error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`,
		id, models.EmailLogStatusFailed, errMsg)
	return err
}

// ListByOrder returns email logs for an order, newest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, order_id, email_type, recipient_email, subject, amount_centavos, remaining_centavos, reason, status, sent_at, error_message, created_at
		FROM email_logs
		WHERE order_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.OrderID, &el.EmailType, &el.RecipientEmail, &el.Subject,
			&el.AmountCentavos, &el.RemainingCentavos, &el.Reason, &el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
