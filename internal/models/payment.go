package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus for ledger entries.
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusVerified      PaymentStatus = "verified"
	PaymentStatusDeclined      PaymentStatus = "declined"
	PaymentStatusProcessing    PaymentStatus = "processing"
	PaymentStatusRefunded      PaymentStatus = "refunded"
	PaymentStatusFailed        PaymentStatus = "failed"
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
	PaymentStatusCancelled     PaymentStatus = "cancelled"
)

// PaymentMethod for ledger entries.
const (
	PaymentMethodGCash  = "gcash"
	PaymentMethodBank   = "bank"
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodOthers = "others"
)

// Payment is one entry in an order's payment ledger. Entries are additive:
// a payment is never deleted, and a partial refund shrinks the original
// verified entry while adding a synthetic refunded entry for the slice.
type Payment struct {
	ID             uuid.UUID     `json:"id"`
	OrderID        uuid.UUID     `json:"order_id"`
	AmountCentavos int64         `json:"amount_centavos"`
	Status         PaymentStatus `json:"status"`
	Method         string        `json:"method"`
	Memo           string        `json:"memo,omitempty"`
	ReferenceNo    string        `json:"reference_no,omitempty"`
	ProcessedBy    *uuid.UUID    `json:"processed_by,omitempty"`
	RefundReason   string        `json:"refund_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
