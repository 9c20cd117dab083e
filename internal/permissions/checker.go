// Package permissions resolves capability checks for administrative actions.
// Capabilities are data on the user row; admins implicitly hold all of them.
package permissions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchline/backend/internal/models"
)

// Checker reports whether an actor holds a set of capabilities. Callers
// must deny the action on error as well as on a false result.
type Checker interface {
	Verify(ctx context.Context, actorID uuid.UUID, capabilities ...string) (bool, error)
}

// PGChecker resolves capabilities from the users table.
type PGChecker struct {
	pool *pgxpool.Pool
}

// NewPGChecker creates a database-backed capability checker.
func NewPGChecker(pool *pgxpool.Pool) *PGChecker {
	return &PGChecker{pool: pool}
}

// Verify returns true when the actor is an admin or holds every requested capability.
func (c *PGChecker) Verify(ctx context.Context, actorID uuid.UUID, capabilities ...string) (bool, error) {
	const q = `SELECT role, capabilities FROM users WHERE id = $1`
	var role string
	var granted []string
	if err := c.pool.QueryRow(ctx, q, actorID).Scan(&role, &granted); err != nil {
		return false, err
	}
	if models.Role(role) == models.RoleAdmin {
		return true, nil
	}
	have := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		have[g] = struct{}{}
	}
	for _, cap := range capabilities {
		if _, ok := have[cap]; !ok {
			return false, nil
		}
	}
	return true, nil
}
