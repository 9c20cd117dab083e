// Package auditlog records administrative actions. Writes are
// fire-and-forget: a failed audit write never fails the action it traces.
package auditlog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/merchline/backend/internal/models"
)

// Entry is one audit record to be written.
type Entry struct {
	ActorID    *uuid.UUID
	Action     string
	SystemText string
	UserText   string
}

// Writer persists audit entries.
type Writer interface {
	Write(ctx context.Context, e Entry)
}

// PGWriter writes audit entries to the audit_logs table.
type PGWriter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPGWriter creates a database-backed audit writer.
func NewPGWriter(pool *pgxpool.Pool, logger *zap.Logger) *PGWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGWriter{pool: pool, logger: logger}
}

// Write inserts an audit entry. Errors are logged, never returned.
func (w *PGWriter) Write(ctx context.Context, e Entry) {
	const q = `INSERT INTO audit_logs (actor_id, action, system_text, user_text) VALUES ($1, $2, $3, $4)`
	if _, err := w.pool.Exec(ctx, q, e.ActorID, e.Action, e.SystemText, e.UserText); err != nil {
		w.logger.Warn("audit log write failed", zap.Error(err), zap.String("action", e.Action))
	}
}

// List returns the most recent audit logs, newest first.
func (w *PGWriter) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := w.pool.Query(ctx, `SELECT id, actor_id, action, system_text, user_text, created_at
		FROM audit_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.SystemText, &l.UserText, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
