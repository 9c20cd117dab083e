package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a merchandise inventory item.
type Product struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	SKU           string    `json:"sku"`
	PriceCentavos int64     `json:"price_centavos"`
	Stock         int       `json:"stock"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
