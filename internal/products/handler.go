package products

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/pkg/response"
)

// Handler handles product HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a products handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// CreateRequest is the body for POST /products.
type CreateRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	SKU           string `json:"sku" binding:"required"`
	PriceCentavos int64  `json:"price_centavos" binding:"required,gte=0"`
	Stock         int    `json:"stock" binding:"gte=0"`
}

// Create handles POST /products.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p := &models.Product{
		Name:          req.Name,
		Description:   req.Description,
		SKU:           req.SKU,
		PriceCentavos: req.PriceCentavos,
		Stock:         req.Stock,
		Active:        true,
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("create product", zap.Error(err))
		response.Conflict(c, "failed to create product (duplicate sku?)")
		return
	}
	response.Created(c, p)
}

// List handles GET /products. ?all=true includes inactive products.
func (h *Handler) List(c *gin.Context) {
	all := c.Query("all") == "true"
	list, err := h.repo.List(c.Request.Context(), all)
	if err != nil {
		response.Internal(c, "failed to list products")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /products/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "product not found")
		return
	}
	response.OK(c, p)
}

// UpdateRequest is the body for PATCH /products/:id.
type UpdateRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	PriceCentavos *int64  `json:"price_centavos"`
	Active        *bool   `json:"active"`
}

// Update handles PATCH /products/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "product not found")
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.PriceCentavos != nil {
		if *req.PriceCentavos < 0 {
			response.BadRequest(c, "price must not be negative")
			return
		}
		p.PriceCentavos = *req.PriceCentavos
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := h.repo.Update(c.Request.Context(), p); err != nil {
		response.Internal(c, "failed to update product")
		return
	}
	response.OK(c, p)
}

// StockRequest is the body for POST /products/:id/stock.
type StockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// AdjustStock handles POST /products/:id/stock.
func (h *Handler) AdjustStock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}
	var req StockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "delta required")
		return
	}
	p, err := h.repo.AdjustStock(c.Request.Context(), id, req.Delta)
	if err != nil {
		response.Conflict(c, "stock adjustment rejected (would go negative or product missing)")
		return
	}
	response.OK(c, p)
}
