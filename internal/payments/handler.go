package payments

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchline/backend/internal/auditlog"
	"github.com/merchline/backend/internal/middleware"
	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/pkg/queue"
	"github.com/merchline/backend/pkg/response"
)

// Handler handles payment HTTP endpoints.
type Handler struct {
	repo    *Repository
	refunds *RefundService
	jobs    Enqueuer
	audit   auditlog.Writer
	logger  *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(repo *Repository, refunds *RefundService, jobs Enqueuer, audit auditlog.Writer, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, refunds: refunds, jobs: jobs, audit: audit, logger: logger}
}

// RecordRequest is the body for POST /orders/:id/payments.
type RecordRequest struct {
	AmountCentavos int64  `json:"amount_centavos" binding:"required,gt=0"`
	Method         string `json:"method" binding:"required"`
	Memo           string `json:"memo"`
	ReferenceNo    string `json:"reference_no"`
}

// Record handles POST /orders/:id/payments. New payments start pending
// until an admin verifies them.
func (h *Handler) Record(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	switch req.Method {
	case models.PaymentMethodGCash, models.PaymentMethodBank, models.PaymentMethodCash, models.PaymentMethodCard, models.PaymentMethodOthers:
	default:
		response.BadRequest(c, "invalid payment method")
		return
	}
	p := &models.Payment{
		OrderID:        orderID,
		AmountCentavos: req.AmountCentavos,
		Method:         req.Method,
		Memo:           req.Memo,
		ReferenceNo:    req.ReferenceNo,
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("record payment", zap.Error(err))
		response.Internal(c, "failed to record payment")
		return
	}
	response.Created(c, p)
}

// ListByOrder handles GET /orders/:id/payments.
func (h *Handler) ListByOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	list, err := h.repo.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		response.Internal(c, "failed to list payments")
		return
	}
	response.OK(c, list)
}

// Verify handles POST /payments/:id/verify. Marks the payment verified,
// reconciles the order's payment status, and queues a receipt email.
func (h *Handler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}
	actorID, ok := actorID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	ctx := c.Request.Context()

	p, err := h.repo.Verify(ctx, id, actorID)
	if err != nil {
		response.Conflict(c, "payment not found or not pending")
		return
	}

	order, err := h.repo.GetOrder(ctx, p.OrderID)
	if err != nil {
		response.Internal(c, "failed to load order")
		return
	}
	verified, err := h.repo.VerifiedTotal(ctx, p.OrderID)
	if err != nil {
		response.Internal(c, "failed to read payment ledger")
		return
	}
	status := ReconcilePaymentStatus(order.Status, order.TotalCentavos, verified)
	if status != order.PaymentStatus {
		if err := h.repo.SetOrderPaymentStatus(ctx, p.OrderID, status); err != nil {
			response.Internal(c, "failed to update payment status")
			return
		}
	}

	h.audit.Write(ctx, auditlog.Entry{
		ActorID:    &actorID,
		Action:     "payments.verify",
		SystemText: "payment " + p.ID.String() + " verified for order " + p.OrderID.String(),
		UserText:   "Payment of " + pesos(p.AmountCentavos) + " verified",
	})

	receipt := queue.EmailPayload{
		EmailType:         queue.EmailPaymentReceipt,
		OrderID:           p.OrderID,
		RecipientEmail:    order.CustomerEmail,
		RecipientName:     order.CustomerName,
		AmountCentavos:    p.AmountCentavos,
		RemainingCentavos: verified,
		ReferenceNo:       p.ReferenceNo,
	}
	if err := h.jobs.EnqueueEmail(ctx, receipt); err != nil {
		h.logger.Warn("receipt enqueue failed", zap.Error(err), zap.String("payment_id", p.ID.String()))
	}

	response.OK(c, p)
}

// DeclineRequest is the body for POST /payments/:id/decline.
type DeclineRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Decline handles POST /payments/:id/decline.
func (h *Handler) Decline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment id")
		return
	}
	actorID, ok := actorID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req DeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "reason required")
		return
	}
	p, err := h.repo.Decline(c.Request.Context(), id, actorID, req.Reason)
	if err != nil {
		response.Conflict(c, "payment not found or not pending")
		return
	}
	h.audit.Write(c.Request.Context(), auditlog.Entry{
		ActorID:    &actorID,
		Action:     "payments.decline",
		SystemText: "payment " + p.ID.String() + " declined: " + req.Reason,
		UserText:   "Payment of " + pesos(p.AmountCentavos) + " declined",
	})
	response.OK(c, p)
}

// RefundHTTPRequest is the body for POST /orders/:id/refund.
type RefundHTTPRequest struct {
	AmountCentavos int64  `json:"amount_centavos" binding:"required"`
	Reason         string `json:"reason" binding:"required"`
	PaymentID      string `json:"payment_id"`
}

// Refund handles POST /orders/:id/refund. Domain failures come back 200
// with success=false so the admin UI renders the message verbatim.
func (h *Handler) Refund(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	actorID, ok := actorID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var body RefundHTTPRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req := RefundRequest{
		OrderID:        orderID,
		AmountCentavos: body.AmountCentavos,
		Reason:         body.Reason,
		ActorID:        actorID,
	}
	if body.PaymentID != "" {
		pid, err := uuid.Parse(body.PaymentID)
		if err != nil {
			response.BadRequest(c, "invalid payment id")
			return
		}
		req.PaymentID = &pid
	}
	result := h.refunds.RefundPayment(c.Request.Context(), req)
	response.OK(c, result)
}

func actorID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
