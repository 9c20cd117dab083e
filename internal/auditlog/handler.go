package auditlog

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/merchline/backend/pkg/response"
)

// Handler handles audit log HTTP endpoints.
type Handler struct {
	writer *PGWriter
}

// NewHandler creates an audit log handler.
func NewHandler(writer *PGWriter) *Handler {
	return &Handler{writer: writer}
}

// List handles GET /audit-logs (admin only). Optional ?limit=N.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.writer.List(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, "failed to load audit logs")
		return
	}
	response.OK(c, logs)
}
