package lifecycle

import (
	"fmt"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
)

// cartTransitions is the admin/system table driven on placed carts, plus the
// user entry points on the live cart (unplaced/paymentFailed -> placed,
// unplaced -> processingPayment). Anything absent here is rejected.
var cartTransitions = map[enums.CartStatus][]enums.CartStatus{
	enums.CartStatusUnplaced: {
		enums.CartStatusPlaced,
		enums.CartStatusProcessingPayment,
		enums.CartStatusInvalid,
	},
	enums.CartStatusProcessingPayment: {
		enums.CartStatusPlaced,
		enums.CartStatusPaymentFailed,
		enums.CartStatusInvalid,
	},
	enums.CartStatusPaymentFailed: {
		enums.CartStatusPlaced,
		enums.CartStatusPaymentFailed,
		enums.CartStatusCancelled,
		enums.CartStatusInvalid,
	},
	enums.CartStatusPlaced: {
		enums.CartStatusPaymentComplete,
		enums.CartStatusProcessing,
		enums.CartStatusPaymentFailed,
		enums.CartStatusCancelled,
	},
	enums.CartStatusPaymentComplete: {
		enums.CartStatusProcessing,
		enums.CartStatusCancelled,
	},
	enums.CartStatusProcessing: {
		enums.CartStatusReadyToDeliver,
		enums.CartStatusReadyToPickup,
		enums.CartStatusOnHold,
		enums.CartStatusCancelled,
	},
	enums.CartStatusReadyToDeliver: {
		enums.CartStatusCompleted,
		enums.CartStatusCancelled,
	},
	enums.CartStatusReadyToPickup: {
		enums.CartStatusCompleted,
		enums.CartStatusCancelled,
	},
	enums.CartStatusOnHold: {
		enums.CartStatusProcessing,
		enums.CartStatusCancelled,
	},
	enums.CartStatusCancelled: {
		enums.CartStatusRefunded,
	},
}

// orderTransitions covers the admin moves (processing -> ready|onHold), the
// user resume (onHold -> processing) and cancellation from any status in
// [placed, completed).
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusUnplaced: {
		enums.OrderStatusPlaced,
		enums.OrderStatusInvalid,
	},
	enums.OrderStatusPlaced: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusReady,
		enums.OrderStatusOnHold,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusReady: {
		enums.OrderStatusCompleted,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusOnHold: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
}

// CanCartTransition reports whether from -> to is in the cart table.
func CanCartTransition(from, to enums.CartStatus) bool {
	for _, candidate := range cartTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// EnsureCartTransition returns a STATE_CONFLICT error when from -> to is
// illegal, leaving the caller's status untouched.
func EnsureCartTransition(from, to enums.CartStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown cart status")
	}
	if !CanCartTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails(fmt.Sprintf("cart cannot move from %s to %s", from, to))
	}
	return nil
}

// CanOrderTransition reports whether from -> to is in the order table. The
// table is consulted first: onHold sits above completed numerically, so the
// cancellation range alone would miss it.
func CanOrderTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	if to == enums.OrderStatusCancelled {
		return from >= enums.OrderStatusPlaced && from < enums.OrderStatusCompleted
	}
	return false
}

// EnsureOrderTransition returns a STATE_CONFLICT error when from -> to is
// illegal.
func EnsureOrderTransition(from, to enums.OrderStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if !CanOrderTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails(fmt.Sprintf("order cannot move from %s to %s", from, to))
	}
	return nil
}

// ReadyStatusFor selects the ready-stage cart status matching the cart's
// collection category.
func ReadyStatusFor(category enums.CollectionCategory) (enums.CartStatus, error) {
	switch category {
	case enums.CollectionCategoryDelivery:
		return enums.CartStatusReadyToDeliver, nil
	case enums.CollectionCategoryPickup:
		return enums.CartStatusReadyToPickup, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}
}

// AllOrdersReady fires the cart's aggregate ready guard: every non-cancelled
// order must be ready, and at least one order must be non-cancelled.
func AllOrdersReady(orders []models.PlacedOrder) bool {
	live := 0
	for i := range orders {
		switch orders[i].Status {
		case enums.OrderStatusCancelled:
			continue
		case enums.OrderStatusReady:
			live++
		default:
			return false
		}
	}
	return live > 0
}

// AllOrdersCancelled reports whether every order in the cart is cancelled.
func AllOrdersCancelled(orders []models.PlacedOrder) bool {
	if len(orders) == 0 {
		return false
	}
	for i := range orders {
		if orders[i].Status != enums.OrderStatusCancelled {
			return false
		}
	}
	return true
}
