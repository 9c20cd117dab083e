// Package worker processes background jobs dequeued from Redis.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchline/backend/internal/mailer"
	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/pkg/queue"
)

// EmailLogStore records delivery outcomes (satisfied by *emaillogs.Repository).
type EmailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// JobQueue is the dequeue/retry surface the processor needs
// (satisfied by *queue.Queue).
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailProcessor delivers customer notification emails and records them.
type EmailProcessor struct {
	logs   EmailLogStore
	sender mailer.Sender
	queue  JobQueue
	logger *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(logs EmailLogStore, sender mailer.Sender, q JobQueue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{logs: logs, sender: sender, queue: q, logger: logger}
}

// Process executes one email job: render, record, send, mark outcome.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	subject, body, err := Render(payload)
	if err != nil {
		return err
	}

	orderID := payload.OrderID
	el := &models.EmailLog{
		OrderID:           &orderID,
		EmailType:         payload.EmailType,
		RecipientEmail:    payload.RecipientEmail,
		Subject:           subject,
		AmountCentavos:    payload.AmountCentavos,
		RemainingCentavos: payload.RemainingCentavos,
		Reason:            payload.Reason,
		Status:            models.EmailLogStatusPending,
	}
	if err := p.logs.Create(ctx, el); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	if err := p.sender.Send(ctx, payload.RecipientEmail, subject, body); err != nil {
		if logErr := p.logs.MarkFailed(ctx, el.ID, err.Error()); logErr != nil {
			p.logger.Warn("mark email failed", zap.Error(logErr))
		}
		return fmt.Errorf("send email: %w", err)
	}

	if err := p.logs.MarkSent(ctx, el.ID, time.Now()); err != nil {
		p.logger.Warn("mark email sent", zap.Error(err))
	}
	p.logger.Info("email delivered", zap.String("email_type", payload.EmailType), zap.String("to", payload.RecipientEmail))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}

// Render builds the subject and plain-text body for an email payload.
func Render(payload queue.EmailPayload) (subject, body string, err error) {
	name := payload.RecipientName
	if name == "" {
		name = "Customer"
	}
	var b strings.Builder
	switch payload.EmailType {
	case queue.EmailRefundConfirmation:
		subject = fmt.Sprintf("Refund confirmation for order %s", shortID(payload.OrderID.String()))
		fmt.Fprintf(&b, "Hi %s,\n\n", name)
		fmt.Fprintf(&b, "We have processed a refund of %s for your order %s.\n", centavosToPesos(payload.AmountCentavos), payload.OrderID)
		if payload.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", payload.Reason)
		}
		fmt.Fprintf(&b, "Remaining verified balance on this order: %s.\n", centavosToPesos(payload.RemainingCentavos))
		estimate := payload.ProcessingTime
		if estimate == "" {
			estimate = "3-5 business days"
		}
		fmt.Fprintf(&b, "\nPlease allow %s for the amount to reach your account.\n", estimate)
	case queue.EmailPaymentReceipt:
		subject = fmt.Sprintf("Payment received for order %s", shortID(payload.OrderID.String()))
		fmt.Fprintf(&b, "Hi %s,\n\n", name)
		fmt.Fprintf(&b, "We have verified your payment of %s for order %s.\n", centavosToPesos(payload.AmountCentavos), payload.OrderID)
		if payload.ReferenceNo != "" {
			fmt.Fprintf(&b, "Reference no: %s\n", payload.ReferenceNo)
		}
		fmt.Fprintf(&b, "Total verified to date: %s.\n", centavosToPesos(payload.RemainingCentavos))
	default:
		return "", "", fmt.Errorf("unknown email type: %s", payload.EmailType)
	}
	b.WriteString("\nThank you,\nMerchline\n")
	return subject, b.String(), nil
}

func centavosToPesos(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%sPHP %d.%02d", sign, c/100, c%100)
}

// shortID trims a uuid for subject lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
