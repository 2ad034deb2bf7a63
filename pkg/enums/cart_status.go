package enums

import "fmt"

// CartStatus tracks the lifecycle of a cart. Codes are ordered so lifecycle
// comparisons (status >= CartStatusPlaced) are meaningful; gaps are reserved
// for future insertion. ReadyToDeliver and ReadyToPickup sit at the same
// lifecycle stage and are selected by the cart's collection category.
type CartStatus int

const (
	CartStatusInvalid           CartStatus = 10
	CartStatusUnplaced          CartStatus = 20
	CartStatusPaymentFailed     CartStatus = 23
	CartStatusProcessingPayment CartStatus = 25
	CartStatusPlaced            CartStatus = 30
	CartStatusPaymentComplete   CartStatus = 40
	CartStatusProcessing        CartStatus = 50
	CartStatusReadyToDeliver    CartStatus = 60
	CartStatusReadyToPickup     CartStatus = 70
	CartStatusCompleted         CartStatus = 80
	CartStatusOnHold            CartStatus = 90
	CartStatusCancelled         CartStatus = 100
	CartStatusRefunded          CartStatus = 110
)

var cartStatusNames = map[CartStatus]string{
	CartStatusInvalid:           "invalid",
	CartStatusUnplaced:          "unplaced",
	CartStatusPaymentFailed:     "paymentFailed",
	CartStatusProcessingPayment: "processingPayment",
	CartStatusPlaced:            "placed",
	CartStatusPaymentComplete:   "paymentComplete",
	CartStatusProcessing:        "processing",
	CartStatusReadyToDeliver:    "readyToDeliver",
	CartStatusReadyToPickup:     "readyToPickup",
	CartStatusCompleted:         "completed",
	CartStatusOnHold:            "onHold",
	CartStatusCancelled:         "cancelled",
	CartStatusRefunded:          "refunded",
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	if name, ok := cartStatusNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cartStatus(%d)", int(c))
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	_, ok := cartStatusNames[c]
	return ok
}

// ParseCartStatus converts a status name into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for candidate, name := range cartStatusNames {
		if name == value {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("invalid cart status %q", value)
}
