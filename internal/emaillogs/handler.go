package emaillogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/pkg/queue"
	"github.com/merchline/backend/pkg/response"
)

// Enqueuer enqueues email jobs (satisfied by *queue.Queue).
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo    *Repository
	jobs    Enqueuer
	orders  orderGetter
	logger  *zap.Logger
}

type orderGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, jobs Enqueuer, orders orderGetter, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jobs: jobs, orders: orders, logger: logger}
}

// ListByOrder handles GET /orders/:id/emails.
func (h *Handler) ListByOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	logs, err := h.repo.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

// ResendRequest is the body for POST /orders/:id/emails/resend.
type ResendRequest struct {
	EmailLogID string `json:"email_log_id" binding:"required,uuid"`
}

// Resend handles POST /orders/:id/emails/resend. Re-enqueues the original
// notification from the recorded email log.
func (h *Handler) Resend(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	var body ResendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email_log_id required")
		return
	}
	logID, _ := uuid.Parse(body.EmailLogID)
	el, err := h.repo.GetByID(c.Request.Context(), logID)
	if err != nil {
		response.NotFound(c, "email log not found")
		return
	}
	if el.OrderID == nil || *el.OrderID != orderID {
		response.BadRequest(c, "email log does not belong to this order")
		return
	}
	order, err := h.orders.GetByID(c.Request.Context(), orderID)
	if err != nil {
		response.NotFound(c, "order not found")
		return
	}
	payload := queue.EmailPayload{
		EmailType:         el.EmailType,
		OrderID:           orderID,
		RecipientEmail:    el.RecipientEmail,
		RecipientName:     order.CustomerName,
		AmountCentavos:    el.AmountCentavos,
		RemainingCentavos: el.RemainingCentavos,
		Reason:            el.Reason,
	}
	if err := h.jobs.EnqueueEmail(c.Request.Context(), payload); err != nil {
		h.logger.Error("resend enqueue failed", zap.Error(err), zap.String("email_log_id", logID.String()))
		response.Internal(c, "failed to enqueue email")
		return
	}
	response.OK(c, gin.H{"message": "resend queued"})
}
