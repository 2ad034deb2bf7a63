package lifecycle

import (
	"testing"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
)

var allCartStatuses = []enums.CartStatus{
	enums.CartStatusInvalid,
	enums.CartStatusUnplaced,
	enums.CartStatusPaymentFailed,
	enums.CartStatusProcessingPayment,
	enums.CartStatusPlaced,
	enums.CartStatusPaymentComplete,
	enums.CartStatusProcessing,
	enums.CartStatusReadyToDeliver,
	enums.CartStatusReadyToPickup,
	enums.CartStatusCompleted,
	enums.CartStatusOnHold,
	enums.CartStatusCancelled,
	enums.CartStatusRefunded,
}

func TestCartTransitionTable(t *testing.T) {
	allowed := []struct{ from, to enums.CartStatus }{
		{enums.CartStatusUnplaced, enums.CartStatusPlaced},
		{enums.CartStatusUnplaced, enums.CartStatusProcessingPayment},
		{enums.CartStatusProcessingPayment, enums.CartStatusPlaced},
		{enums.CartStatusProcessingPayment, enums.CartStatusPaymentFailed},
		{enums.CartStatusPaymentFailed, enums.CartStatusPlaced},
		{enums.CartStatusPaymentFailed, enums.CartStatusCancelled},
		{enums.CartStatusPlaced, enums.CartStatusPaymentComplete},
		{enums.CartStatusPlaced, enums.CartStatusProcessing},
		{enums.CartStatusPlaced, enums.CartStatusPaymentFailed},
		{enums.CartStatusPlaced, enums.CartStatusCancelled},
		{enums.CartStatusPaymentComplete, enums.CartStatusProcessing},
		{enums.CartStatusPaymentComplete, enums.CartStatusCancelled},
		{enums.CartStatusProcessing, enums.CartStatusReadyToDeliver},
		{enums.CartStatusProcessing, enums.CartStatusReadyToPickup},
		{enums.CartStatusProcessing, enums.CartStatusCancelled},
		{enums.CartStatusReadyToDeliver, enums.CartStatusCompleted},
		{enums.CartStatusReadyToDeliver, enums.CartStatusCancelled},
		{enums.CartStatusReadyToPickup, enums.CartStatusCompleted},
		{enums.CartStatusReadyToPickup, enums.CartStatusCancelled},
	}

	for _, tc := range allowed {
		if !CanCartTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
		if err := EnsureCartTransition(tc.from, tc.to); err != nil {
			t.Errorf("EnsureCartTransition(%s, %s): %v", tc.from, tc.to, err)
		}
	}
}

func TestCartTransitionRejections(t *testing.T) {
	// exhaustive sweep: anything the table does not name must be rejected
	// with a STATE_CONFLICT and no other signal.
	rejected := []struct{ from, to enums.CartStatus }{
		{enums.CartStatusCompleted, enums.CartStatusProcessing},
		{enums.CartStatusCancelled, enums.CartStatusProcessing},
		{enums.CartStatusPlaced, enums.CartStatusCompleted},
		{enums.CartStatusUnplaced, enums.CartStatusProcessing},
		{enums.CartStatusProcessing, enums.CartStatusCompleted},
		{enums.CartStatusRefunded, enums.CartStatusPlaced},
		{enums.CartStatusInvalid, enums.CartStatusUnplaced},
	}
	for _, tc := range rejected {
		err := EnsureCartTransition(tc.from, tc.to)
		if err == nil {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
			continue
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			t.Errorf("expected STATE_CONFLICT for %s -> %s, got %v", tc.from, tc.to, err)
		}
	}

	for _, from := range allCartStatuses {
		for _, to := range allCartStatuses {
			if CanCartTransition(from, to) {
				continue
			}
			if err := EnsureCartTransition(from, to); err == nil {
				t.Errorf("table and EnsureCartTransition disagree on %s -> %s", from, to)
			}
		}
	}
}

func TestEnsureCartTransitionUnknownStatus(t *testing.T) {
	err := EnsureCartTransition(enums.CartStatus(999), enums.CartStatusPlaced)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for unknown status, got %v", err)
	}
}

func TestOrderTransitions(t *testing.T) {
	if !CanOrderTransition(enums.OrderStatusProcessing, enums.OrderStatusReady) {
		t.Errorf("processing -> ready must be legal")
	}
	if !CanOrderTransition(enums.OrderStatusProcessing, enums.OrderStatusOnHold) {
		t.Errorf("processing -> onHold must be legal")
	}
	if !CanOrderTransition(enums.OrderStatusOnHold, enums.OrderStatusProcessing) {
		t.Errorf("onHold -> processing must be legal")
	}
	if CanOrderTransition(enums.OrderStatusReady, enums.OrderStatusProcessing) {
		t.Errorf("ready -> processing must be rejected")
	}

	// cancellation window: [placed, completed)
	if !CanOrderTransition(enums.OrderStatusPlaced, enums.OrderStatusCancelled) {
		t.Errorf("placed order must be cancellable")
	}
	if !CanOrderTransition(enums.OrderStatusOnHold, enums.OrderStatusCancelled) {
		t.Errorf("onHold order must be cancellable")
	}
	if err := EnsureOrderTransition(enums.OrderStatusOnHold, enums.OrderStatusCancelled); err != nil {
		t.Errorf("EnsureOrderTransition(onHold, cancelled): %v", err)
	}
	if CanOrderTransition(enums.OrderStatusCompleted, enums.OrderStatusCancelled) {
		t.Errorf("completed order must not be cancellable")
	}
	if CanOrderTransition(enums.OrderStatusUnplaced, enums.OrderStatusCancelled) {
		t.Errorf("unplaced order is evicted, never cancelled")
	}
}

func TestReadyStatusFor(t *testing.T) {
	status, err := ReadyStatusFor(enums.CollectionCategoryDelivery)
	if err != nil || status != enums.CartStatusReadyToDeliver {
		t.Fatalf("delivery: got %s/%v", status, err)
	}
	status, err = ReadyStatusFor(enums.CollectionCategoryPickup)
	if err != nil || status != enums.CartStatusReadyToPickup {
		t.Fatalf("pickup: got %s/%v", status, err)
	}
	if _, err := ReadyStatusFor(enums.CollectionCategory("post")); err == nil {
		t.Fatalf("unknown category must fail")
	}
}

func TestAllOrdersReadyGuard(t *testing.T) {
	orders := []models.PlacedOrder{
		{Status: enums.OrderStatusReady},
		{Status: enums.OrderStatusProcessing},
		{Status: enums.OrderStatusCancelled},
	}
	if AllOrdersReady(orders) {
		t.Fatalf("guard must not fire while an order is still processing")
	}

	orders[1].Status = enums.OrderStatusReady
	if !AllOrdersReady(orders) {
		t.Fatalf("guard must fire once every non-cancelled order is ready")
	}

	// all cancelled: ready guard must not fire
	for i := range orders {
		orders[i].Status = enums.OrderStatusCancelled
	}
	if AllOrdersReady(orders) {
		t.Fatalf("ready guard must not fire with zero live orders")
	}
	if !AllOrdersCancelled(orders) {
		t.Fatalf("cancelled guard must fire when every order is cancelled")
	}
	if AllOrdersCancelled(nil) {
		t.Fatalf("cancelled guard must not fire on an empty cart")
	}
}
