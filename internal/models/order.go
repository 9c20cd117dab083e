package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfillment status of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderPaymentStatus is derived from the order's verified payment ledger.
// It is only ever written by reconciliation, never set directly.
type OrderPaymentStatus string

const (
	OrderPaymentPending     OrderPaymentStatus = "pending"
	OrderPaymentDownpayment OrderPaymentStatus = "downpayment"
	OrderPaymentPaid        OrderPaymentStatus = "paid"
	OrderPaymentRefunded    OrderPaymentStatus = "refunded"
)

// Order represents a merchandise order.
type Order struct {
	ID            uuid.UUID          `json:"id"`
	CustomerID    *uuid.UUID         `json:"customer_id,omitempty"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	TotalCentavos int64              `json:"total_centavos"`
	Status        OrderStatus        `json:"status"`
	PaymentStatus OrderPaymentStatus `json:"payment_status"`
	CustomerNotes string             `json:"customer_notes"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}
