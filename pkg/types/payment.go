package types

import "time"

// PaymentFailure is one failed attempt recorded against a cart. The list is
// append-only; prior failures are kept for manual reconciliation.
type PaymentFailure struct {
	ReferenceNo  string    `json:"referenceNo"`
	ResponseCode string    `json:"responseCode"`
	Amount       string    `json:"amount"`
	FailedAt     time.Time `json:"failedAt"`
	Reason       string    `json:"reason,omitempty"`
}

// PaymentFailures is stored as a jsonb column on carts.
type PaymentFailures []PaymentFailure
