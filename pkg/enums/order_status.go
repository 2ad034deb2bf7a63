package enums

import "fmt"

// OrderStatus tracks a single service request inside a cart. The codes mirror
// a subset of the cart lattice so lifecycle comparisons stay consistent
// across the two; OnHold and Cancelled sit outside the main progression.
type OrderStatus int

const (
	OrderStatusPaymentFailed OrderStatus = 10
	OrderStatusInvalid       OrderStatus = 15
	OrderStatusUnplaced      OrderStatus = 20
	OrderStatusPlaced        OrderStatus = 30
	OrderStatusProcessing    OrderStatus = 50
	OrderStatusReady         OrderStatus = 60
	OrderStatusCompleted     OrderStatus = 80
	OrderStatusOnHold        OrderStatus = 90
	OrderStatusCancelled     OrderStatus = 100
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusPaymentFailed: "paymentFailed",
	OrderStatusInvalid:       "invalidOrder",
	OrderStatusUnplaced:      "unplaced",
	OrderStatusPlaced:        "placed",
	OrderStatusProcessing:    "processing",
	OrderStatusReady:         "ready",
	OrderStatusCompleted:     "completed",
	OrderStatusOnHold:        "onHold",
	OrderStatusCancelled:     "cancelled",
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	if name, ok := orderStatusNames[o]; ok {
		return name
	}
	return fmt.Sprintf("orderStatus(%d)", int(o))
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	_, ok := orderStatusNames[o]
	return ok
}

// ParseOrderStatus converts a status name into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for candidate, name := range orderStatusNames {
		if name == value {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("invalid order status %q", value)
}
