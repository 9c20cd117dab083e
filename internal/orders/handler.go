package orders

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchline/backend/internal/auditlog"
	"github.com/merchline/backend/internal/middleware"
	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/internal/payments"
	"github.com/merchline/backend/pkg/response"
)

// PaymentReader exposes the ledger views the orders API needs
// (satisfied by *payments.Repository).
type PaymentReader interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Payment, error)
	VerifiedTotal(ctx context.Context, orderID uuid.UUID) (int64, error)
}

// Handler handles order HTTP endpoints.
type Handler struct {
	repo     *Repository
	payments PaymentReader
	audit    auditlog.Writer
	logger   *zap.Logger
}

// NewHandler creates an orders handler.
func NewHandler(repo *Repository, paymentReader PaymentReader, audit auditlog.Writer, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, payments: paymentReader, audit: audit, logger: logger}
}

// CreateRequest is the body for POST /orders.
type CreateRequest struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	TotalCentavos int64  `json:"total_centavos" binding:"required,gt=0"`
}

// Create handles POST /orders.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	o := &models.Order{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		TotalCentavos: req.TotalCentavos,
	}
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			response.BadRequest(c, "invalid customer id")
			return
		}
		o.CustomerID = &id
	}
	if err := h.repo.Create(c.Request.Context(), o); err != nil {
		h.logger.Error("create order", zap.Error(err))
		response.Internal(c, "failed to create order")
		return
	}
	response.Created(c, o)
}

// List handles GET /orders. Optional ?status= filter.
func (h *Handler) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.ValidOrderStatus(status) {
		response.BadRequest(c, "invalid status filter")
		return
	}
	list, err := h.repo.List(c.Request.Context(), status)
	if err != nil {
		response.Internal(c, "failed to list orders")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /orders/:id. Returns the order with its payment ledger.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	order, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "order not found")
		return
	}
	ledger, err := h.payments.ListByOrder(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load payments")
		return
	}
	response.OK(c, gin.H{"order": order, "payments": ledger})
}

// UpdateStatusRequest is the body for PATCH /orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /orders/:id/status. Cancelling an order forces
// its payment status to refunded via reconciliation.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	if !models.ValidOrderStatus(req.Status) {
		response.BadRequest(c, "invalid status")
		return
	}
	ctx := c.Request.Context()
	if err := h.repo.UpdateStatus(ctx, id, models.OrderStatus(req.Status)); err != nil {
		response.Conflict(c, err.Error())
		return
	}

	order, err := h.repo.GetByID(ctx, id)
	if err != nil {
		response.Internal(c, "failed to reload order")
		return
	}
	verified, err := h.payments.VerifiedTotal(ctx, id)
	if err != nil {
		response.Internal(c, "failed to read payment ledger")
		return
	}
	reconciled := payments.ReconcilePaymentStatus(order.Status, order.TotalCentavos, verified)
	if reconciled != order.PaymentStatus {
		if err := h.repo.SetPaymentStatus(ctx, id, reconciled); err != nil {
			response.Internal(c, "failed to update payment status")
			return
		}
		order.PaymentStatus = reconciled
	}

	actorID := actor(c)
	h.audit.Write(ctx, auditlog.Entry{
		ActorID:    actorID,
		Action:     "orders.status",
		SystemText: "order " + id.String() + " status set to " + req.Status,
		UserText:   "Order status changed to " + req.Status,
	})
	response.OK(c, order)
}

// AddNoteRequest is the body for POST /orders/:id/notes.
type AddNoteRequest struct {
	Note string `json:"note" binding:"required"`
}

// AddNote handles POST /orders/:id/notes.
func (h *Handler) AddNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}
	var req AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "note required")
		return
	}
	if err := h.repo.AppendCustomerNote(c.Request.Context(), id, req.Note); err != nil {
		response.Internal(c, "failed to add note")
		return
	}
	response.OK(c, gin.H{"message": "note added"})
}

// actor extracts the acting user's ID from the gin context, if present.
func actor(c *gin.Context) *uuid.UUID {
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return &id
		}
	}
	return nil
}
