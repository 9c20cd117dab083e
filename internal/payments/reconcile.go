package payments

import "github.com/merchline/backend/internal/models"

// ReconcilePaymentStatus recomputes an order's payment status from its
// ledger state. It is a pure function and must always be recomputed from
// the full verified total, never patched incrementally.
//
// A cancelled order always reconciles to refunded regardless of the
// remaining verified balance.
func ReconcilePaymentStatus(orderStatus models.OrderStatus, totalCentavos, verifiedCentavos int64) models.OrderPaymentStatus {
	if orderStatus == models.OrderStatusCancelled {
		return models.OrderPaymentRefunded
	}
	switch {
	case verifiedCentavos <= 0:
		return models.OrderPaymentPending
	case totalCentavos > 0 && verifiedCentavos >= totalCentavos:
		return models.OrderPaymentPaid
	default:
		return models.OrderPaymentDownpayment
	}
}
