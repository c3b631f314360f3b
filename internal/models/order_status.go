package models

import "errors"

// Fulfillment statuses.
const (
	StatusPending   = "pending"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Payment statuses.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRejected = "rejected"
	PaymentRefunded = "refunded"
)

// Payment methods accepted at checkout.
const (
	MethodDebit       = "debit"
	MethodCredit      = "credit"
	MethodMercadoPago = "mercadopago"
	MethodTransfer    = "transfer"
	MethodCash        = "cash"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var validNext = map[string]map[string]bool{
	StatusPending:   {StatusShipped: true, StatusDelivered: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

// IsKnownStatus reports whether s is a fulfillment status.
func IsKnownStatus(s string) bool {
	_, ok := validNext[s]
	return ok
}

// CanTransition reports whether an order may move from one fulfillment
// status to another. Re-applying the current status is allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return IsKnownStatus(to)
	}
	return validNext[from][to]
}

// PaymentStatusFromGateway maps a Mercado Pago payment status onto ours.
func PaymentStatusFromGateway(status string) string {
	switch status {
	case "approved":
		return PaymentPaid
	case "rejected", "cancelled":
		return PaymentRejected
	case "refunded", "charged_back":
		return PaymentRefunded
	default:
		return PaymentPending
	}
}
