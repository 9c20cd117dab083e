package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchline/backend/internal/auditlog"
	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/internal/permissions"
	"github.com/merchline/backend/pkg/queue"
)

// Enqueuer enqueues post-commit notification jobs (satisfied by *queue.Queue).
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// RefundRequest is the input to RefundPayment.
type RefundRequest struct {
	OrderID        uuid.UUID
	AmountCentavos int64
	Reason         string
	ActorID        uuid.UUID
	// PaymentID, when set, targets a specific verified payment before the
	// oldest-first sweep.
	PaymentID *uuid.UUID
}

// RefundResult is the structured outcome of a refund attempt. Failures are
// returned, never panicked, so the admin UI can render Message verbatim.
type RefundResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	RefundedCentavos  int64  `json:"refunded_centavos,omitempty"`
	RemainingCentavos int64  `json:"remaining_centavos"`
}

// RefundService allocates refunds against an order's verified payment
// ledger inside a single transaction. Either the full requested amount
// allocates or nothing changes.
type RefundService struct {
	ledger             Ledger
	perms              permissions.Checker
	audit              auditlog.Writer
	jobs               Enqueuer
	logger             *zap.Logger
	processingEstimate string
}

// NewRefundService creates a refund service.
func NewRefundService(ledger Ledger, perms permissions.Checker, audit auditlog.Writer, jobs Enqueuer, processingEstimate string, logger *zap.Logger) *RefundService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundService{
		ledger:             ledger,
		perms:              perms,
		audit:              audit,
		jobs:               jobs,
		logger:             logger,
		processingEstimate: processingEstimate,
	}
}

// refundError is a domain failure whose message is shown to the admin as-is.
type refundError struct{ msg string }

func (e *refundError) Error() string { return e.msg }

func failf(format string, args ...any) error {
	return &refundError{msg: fmt.Sprintf(format, args...)}
}

// RefundPayment allocates a refund. Consumption order: the targeted payment
// first (if any), then remaining verified payments oldest-first. A payment
// larger than the outstanding refund is shrunk and offset with a synthetic
// refunded entry; the ledger is additive, nothing is deleted.
func (s *RefundService) RefundPayment(ctx context.Context, req RefundRequest) RefundResult {
	allowed, err := s.perms.Verify(ctx, req.ActorID, models.CapPaymentsUpdate, models.CapOrdersUpdate)
	if err != nil || !allowed {
		s.writeAudit(ctx, req, false, "refund denied: missing payments.update/orders.update capability")
		return RefundResult{Success: false, Message: "you are not authorized to process refunds"}
	}

	if req.AmountCentavos <= 0 {
		s.writeAudit(ctx, req, false, "refund rejected: non-positive amount")
		return RefundResult{Success: false, Message: "refund amount must be greater than zero"}
	}

	var balance int64 // verified total left after allocation
	txErr := s.ledger.WithinTx(ctx, func(tx LedgerTx) error {
		order, err := tx.OrderForUpdate(ctx, req.OrderID)
		if err != nil {
			return failf("order not found")
		}

		verified, err := tx.VerifiedPaymentsForUpdate(ctx, req.OrderID)
		if err != nil {
			return fmt.Errorf("load verified payments: %w", err)
		}
		if len(verified) == 0 {
			return failf("no verified payments found to refund")
		}

		var verifiedTotal int64
		for _, p := range verified {
			verifiedTotal += p.AmountCentavos
		}

		remaining := req.AmountCentavos

		// Targeted phase: consume the specified payment before the sweep.
		var targetID uuid.UUID
		if req.PaymentID != nil {
			targetID = *req.PaymentID
			var target *models.Payment
			for _, p := range verified {
				if p.ID == targetID {
					target = p
					break
				}
			}
			if target == nil {
				return failf("specified payment not found or not verified")
			}
			var e error
			remaining, e = s.consume(ctx, tx, req, target, remaining)
			if e != nil {
				return e
			}
		}

		// Sweep phase: oldest-first over the rest of the verified set.
		for _, p := range verified {
			if remaining == 0 {
				break
			}
			if p.ID == targetID {
				continue
			}
			var e error
			remaining, e = s.consume(ctx, tx, req, p, remaining)
			if e != nil {
				return e
			}
		}

		if remaining > 0 {
			// All-or-nothing: the rollback undoes every mark above.
			return failf("insufficient verified payment amount to refund: %s remaining", pesos(remaining))
		}

		balance = verifiedTotal - req.AmountCentavos
		status := ReconcilePaymentStatus(order.Status, order.TotalCentavos, balance)
		if err := tx.SetOrderPaymentStatus(ctx, req.OrderID, status); err != nil {
			return fmt.Errorf("reconcile payment status: %w", err)
		}

		note := fmt.Sprintf("Refunded %s (%s)", pesos(req.AmountCentavos), req.Reason)
		if err := tx.AppendCustomerNote(ctx, req.OrderID, note); err != nil {
			return fmt.Errorf("append customer note: %w", err)
		}
		return nil
	})

	if txErr != nil {
		var rerr *refundError
		msg := "refund failed: " + txErr.Error()
		if errors.As(txErr, &rerr) {
			msg = rerr.msg
		}
		s.writeAudit(ctx, req, false, msg)
		return RefundResult{Success: false, Message: msg}
	}

	s.writeAudit(ctx, req, true, fmt.Sprintf("refunded %s, %s verified remaining", pesos(req.AmountCentavos), pesos(balance)))
	s.notify(ctx, req, balance)

	return RefundResult{
		Success:           true,
		Message:           "refund processed",
		RefundedCentavos:  req.AmountCentavos,
		RemainingCentavos: balance,
	}
}

// consume applies one payment against the outstanding refund and returns
// the new outstanding amount.
func (s *RefundService) consume(ctx context.Context, tx LedgerTx, req RefundRequest, p *models.Payment, remaining int64) (int64, error) {
	switch {
	case p.AmountCentavos <= remaining:
		if err := tx.MarkRefunded(ctx, p.ID, req.Reason, req.ActorID); err != nil {
			return remaining, fmt.Errorf("mark payment refunded: %w", err)
		}
		return remaining - p.AmountCentavos, nil
	default:
		// Shrink the verified entry and offset with a synthetic refunded
		// entry so the ledger stays additive.
		if err := tx.ReduceAmount(ctx, p.ID, p.AmountCentavos-remaining); err != nil {
			return remaining, fmt.Errorf("reduce payment amount: %w", err)
		}
		actorID := req.ActorID
		offset := &models.Payment{
			ID:             uuid.New(),
			OrderID:        req.OrderID,
			AmountCentavos: remaining,
			Status:         models.PaymentStatusRefunded,
			Method:         models.PaymentMethodOthers,
			Memo:           "partial refund of payment " + p.ID.String(),
			ProcessedBy:    &actorID,
			RefundReason:   req.Reason,
		}
		if err := tx.InsertRefundEntry(ctx, offset); err != nil {
			return remaining, fmt.Errorf("insert refund entry: %w", err)
		}
		return 0, nil
	}
}

// writeAudit records the attempt. Audit failures never affect the refund.
func (s *RefundService) writeAudit(ctx context.Context, req RefundRequest, success bool, detail string) {
	actorID := req.ActorID
	action := "payments.refund"
	userText := "Refund of " + pesos(req.AmountCentavos) + " failed"
	if success {
		userText = "Refund of " + pesos(req.AmountCentavos) + " processed"
	}
	s.audit.Write(ctx, auditlog.Entry{
		ActorID:    &actorID,
		Action:     action,
		SystemText: fmt.Sprintf("order %s: %s", req.OrderID, detail),
		UserText:   userText,
	})
}

// notify enqueues the refund confirmation email after commit. Fire-and-
// forget: an enqueue failure is logged, the refund stays successful.
func (s *RefundService) notify(ctx context.Context, req RefundRequest, balance int64) {
	order, err := s.ledger.GetOrder(ctx, req.OrderID)
	if err != nil {
		s.logger.Warn("refund notification skipped", zap.Error(err), zap.String("order_id", req.OrderID.String()))
		return
	}
	payload := queue.EmailPayload{
		EmailType:         queue.EmailRefundConfirmation,
		OrderID:           req.OrderID,
		RecipientEmail:    order.CustomerEmail,
		RecipientName:     order.CustomerName,
		AmountCentavos:    req.AmountCentavos,
		RemainingCentavos: balance,
		Reason:            req.Reason,
		ProcessingTime:    s.processingEstimate,
	}
	if err := s.jobs.EnqueueEmail(ctx, payload); err != nil {
		s.logger.Warn("refund notification enqueue failed", zap.Error(err), zap.String("order_id", req.OrderID.String()))
	}
}

// pesos renders centavos as a peso amount for messages and notes.
func pesos(centavos int64) string {
	sign := ""
	if centavos < 0 {
		sign = "-"
		centavos = -centavos
	}
	return fmt.Sprintf("%sPHP %d.%02d", sign, centavos/100, centavos%100)
}
