package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records an administrative action for traceability.
// SystemText is the machine-oriented description; UserText is what an
// admin sees in the activity feed.
type AuditLog struct {
	ID         uuid.UUID  `json:"id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Action     string     `json:"action"`
	SystemText string     `json:"system_text"`
	UserText   string     `json:"user_text"`
	CreatedAt  time.Time  `json:"created_at"`
}
