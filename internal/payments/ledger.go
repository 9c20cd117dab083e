package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/merchline/backend/internal/models"
)

// Ledger provides transactional access to an order and its payment ledger.
// Refund allocation runs entirely inside one WithinTx call: if fn returns an
// error every mutation made through the LedgerTx is rolled back.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
	// GetOrder reads an order outside any allocation transaction (used for
	// post-commit notifications).
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// LedgerTx is the set of reads and writes available inside an allocation
// transaction. Implementations must serialize concurrent refunds on the
// same order (the pgx implementation locks the order row and the verified
// payment rows with FOR UPDATE).
type LedgerTx interface {
	// OrderForUpdate loads and locks the order.
	OrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// VerifiedPaymentsForUpdate loads and locks all verified payments for
	// the order, oldest first. The ordering is load-bearing: refunds
	// consume the oldest verified payments first.
	VerifiedPaymentsForUpdate(ctx context.Context, orderID uuid.UUID) ([]*models.Payment, error)
	// MarkRefunded transitions a verified payment to refunded in full.
	MarkRefunded(ctx context.Context, paymentID uuid.UUID, reason string, actorID uuid.UUID) error
	// ReduceAmount shrinks a verified payment to newAmount (a partial
	// refund keeps the original entry with the unrefunded remainder).
	ReduceAmount(ctx context.Context, paymentID uuid.UUID, newAmount int64) error
	// InsertRefundEntry adds the synthetic refunded entry offsetting a
	// partial refund, preserving the additive-only ledger.
	InsertRefundEntry(ctx context.Context, p *models.Payment) error
	// SetOrderPaymentStatus writes the reconciled payment status.
	SetOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status models.OrderPaymentStatus) error
	// AppendCustomerNote appends an audit line to the order's notes.
	AppendCustomerNote(ctx context.Context, orderID uuid.UUID, note string) error
}
