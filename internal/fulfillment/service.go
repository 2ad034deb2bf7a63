package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/lifecycle"
	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
	"github.com/campusdesk/campusdesk-backend/pkg/pagination"
)

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type notifier interface {
	EnqueueTx(ctx context.Context, tx *gorm.DB, input notifications.EnqueueInput) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TransitionCartInput is one admin move on a placed cart. Courier fields are
// required when completing a delivery cart; Reason is required for cancel.
type TransitionCartInput struct {
	To          enums.CartStatus
	CourierName *string
	TrackingID  *string
	Reason      *string
}

// Service drives placed carts and their orders through the fulfillment
// pipeline. Every move is checked against the transition table and applied
// with compare-and-swap, so duplicate requests cascade at most once.
type Service interface {
	GetCart(ctx context.Context, id uuid.UUID) (*models.PlacedCart, error)
	GetCartForUser(ctx context.Context, userID, id uuid.UUID) (*models.PlacedCart, error)
	ListCartsForUser(ctx context.Context, userID uuid.UUID) ([]models.PlacedCart, error)
	ListCarts(ctx context.Context, query ListCartsQuery) ([]models.PlacedCart, *pagination.Cursor, error)

	// MarkPaid is the payment-confirmed entry point shared by the offline
	// confirmation and the gateway capture: placed to processing with the
	// full sub-resource and order cascade.
	MarkPaid(ctx context.Context, placedCartID uuid.UUID, actor string) (*models.PlacedCart, error)

	TransitionCart(ctx context.Context, placedCartID uuid.UUID, input TransitionCartInput, actor string) (*models.PlacedCart, error)
	TransitionOrder(ctx context.Context, placedOrderID uuid.UUID, to enums.OrderStatus, reason *string, actor string) (*models.PlacedOrder, error)

	// ResumeOrder is the user-side move: their on-hold request back to
	// processing once they have supplied whatever the hold asked for.
	ResumeOrder(ctx context.Context, userID, placedOrderID uuid.UUID, actor string) (*models.PlacedOrder, error)
}

type service struct {
	repo   PlacedRepository
	users  userReader
	notify notifier
	events eventEmitter
	tx     txRunner
	logg   *logger.Logger
}

// NewService builds the fulfillment service.
func NewService(repo PlacedRepository, users userReader, notify notifier, events eventEmitter, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil || users == nil || notify == nil || events == nil || tx == nil {
		return nil, fmt.Errorf("fulfillment service is missing a dependency")
	}
	return &service{repo: repo, users: users, notify: notify, events: events, tx: tx, logg: logg}, nil
}

func (s *service) GetCart(ctx context.Context, id uuid.UUID) (*models.PlacedCart, error) {
	cart, err := s.repo.FindCart(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "placed cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load placed cart")
	}
	return cart, nil
}

func (s *service) GetCartForUser(ctx context.Context, userID, id uuid.UUID) (*models.PlacedCart, error) {
	cart, err := s.GetCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if cart.RequestedBy != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "placed cart not found")
	}
	return cart, nil
}

func (s *service) ListCartsForUser(ctx context.Context, userID uuid.UUID) ([]models.PlacedCart, error) {
	carts, err := s.repo.ListCartsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list placed carts")
	}
	return carts, nil
}

func (s *service) ListCarts(ctx context.Context, query ListCartsQuery) ([]models.PlacedCart, *pagination.Cursor, error) {
	for _, status := range query.Statuses {
		if !status.IsValid() {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown cart status filter")
		}
	}
	carts, cursor, err := s.repo.ListCarts(ctx, query)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list placed carts")
	}
	return carts, cursor, nil
}

func (s *service) MarkPaid(ctx context.Context, placedCartID uuid.UUID, actor string) (*models.PlacedCart, error) {
	return s.TransitionCart(ctx, placedCartID, TransitionCartInput{To: enums.CartStatusProcessing}, actor)
}

func (s *service) TransitionCart(ctx context.Context, placedCartID uuid.UUID, input TransitionCartInput, actor string) (*models.PlacedCart, error) {
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown cart status")
	}

	var out *models.PlacedCart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindCart(ctx, placedCartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "placed cart not found")
			}
			return err
		}
		if err := lifecycle.EnsureCartTransition(cart.Status, input.To); err != nil {
			return err
		}

		from := cart.Status
		now := time.Now().UTC()
		var changedOrders []*models.PlacedOrder

		switch input.To {
		case enums.CartStatusProcessing:
			changedOrders = applyProcessing(cart, from, actor, now)
		case enums.CartStatusReadyToDeliver, enums.CartStatusReadyToPickup:
			if err := ensureReadyTarget(cart, input.To); err != nil {
				return err
			}
		case enums.CartStatusCompleted:
			changedOrders, err = applyCompleted(cart, input, actor, now)
			if err != nil {
				return err
			}
		case enums.CartStatusCancelled:
			changedOrders, err = applyCancelled(cart, input.Reason, actor, now)
			if err != nil {
				return err
			}
		}

		// the CAS is what makes a duplicate request cascade at most once
		moved, err := repo.UpdateCartStatusCAS(ctx, cart.ID, from, input.To)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
				WithDetails("cart was modified by a concurrent request")
		}
		cart.Status = input.To
		cart.StatusTimeline.Record(input.To.String(), actor, now)
		if err := repo.SaveCart(ctx, cart); err != nil {
			return err
		}
		for _, order := range changedOrders {
			if err := repo.SaveOrder(ctx, order); err != nil {
				return err
			}
		}

		if err := s.announceCartMove(ctx, tx, cart, input, actor); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition placed cart")
	}
	return out, nil
}

// applyProcessing confirms payment and fans the move out to the child orders
// and the collection sub-resource. Resuming from onHold re-enters processing
// without touching payment state or already-moved orders.
func applyProcessing(cart *models.PlacedCart, from enums.CartStatus, actor string, now time.Time) []*models.PlacedOrder {
	var changed []*models.PlacedOrder
	if from == enums.CartStatusOnHold {
		return changed
	}

	cart.PaymentStatus = true
	setCollectionStatus(cart, enums.CollectionStatusProcessing)
	for i := range cart.Orders {
		order := &cart.Orders[i]
		if order.Status != enums.OrderStatusPlaced {
			continue
		}
		order.Status = enums.OrderStatusProcessing
		order.StatusTimeline.Record(enums.OrderStatusProcessing.String(), actor, now)
		changed = append(changed, order)
	}
	return changed
}

// ensureReadyTarget guards manual ready moves: the target must match the
// cart's collection category and every live order must already be ready.
func ensureReadyTarget(cart *models.PlacedCart, to enums.CartStatus) error {
	if cart.CollectionCategory == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart has no collection category")
	}
	expected, err := lifecycle.ReadyStatusFor(*cart.CollectionCategory)
	if err != nil {
		return err
	}
	if to != expected {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails(fmt.Sprintf("a %s cart becomes %s, not %s", *cart.CollectionCategory, expected, to))
	}
	if !lifecycle.AllOrdersReady(cart.Orders) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails("not every request in this cart is ready")
	}
	return nil
}

func applyCompleted(cart *models.PlacedCart, input TransitionCartInput, actor string, now time.Time) ([]*models.PlacedOrder, error) {
	if cart.CollectionCategory != nil && *cart.CollectionCategory == enums.CollectionCategoryDelivery {
		courier := strings.TrimSpace(deref(input.CourierName))
		tracking := strings.TrimSpace(deref(input.TrackingID))
		if courier == "" || tracking == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "courier information required")
		}
		if cart.Delivery != nil {
			cart.Delivery.CourierName = &courier
			cart.Delivery.TrackingID = &tracking
		}
	}
	setCollectionStatus(cart, enums.CollectionStatusCompleted)

	var changed []*models.PlacedOrder
	for i := range cart.Orders {
		order := &cart.Orders[i]
		if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusCompleted {
			continue
		}
		order.Status = enums.OrderStatusCompleted
		order.StatusTimeline.Record(enums.OrderStatusCompleted.String(), actor, now)
		changed = append(changed, order)
	}
	return changed, nil
}

func applyCancelled(cart *models.PlacedCart, reason *string, actor string, now time.Time) ([]*models.PlacedOrder, error) {
	trimmed := strings.TrimSpace(deref(reason))
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a cancellation reason is required")
	}
	cart.CancelReason = &trimmed
	setCollectionStatus(cart, enums.CollectionStatusCancelled)

	var changed []*models.PlacedOrder
	for i := range cart.Orders {
		order := &cart.Orders[i]
		if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusCompleted {
			continue
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelReason = &trimmed
		order.StatusTimeline.Record(enums.OrderStatusCancelled.String(), actor, now)
		changed = append(changed, order)
	}
	return changed, nil
}

func setCollectionStatus(cart *models.PlacedCart, status enums.CollectionStatus) {
	if cart.Delivery != nil {
		cart.Delivery.Status = string(status)
	}
	if cart.Pickup != nil {
		cart.Pickup.Status = string(status)
	}
}

func (s *service) announceCartMove(ctx context.Context, tx *gorm.DB, cart *models.PlacedCart, input TransitionCartInput, actor string) error {
	user, err := s.users.FindByID(ctx, cart.RequestedBy)
	if err != nil {
		return err
	}

	var message string
	var eventType enums.OutboxEventType
	data := map[string]any{
		"orderCode": cart.OrderCode,
		"memberId":  user.MemberID,
		"email":     user.Email,
	}

	switch cart.Status {
	case enums.CartStatusProcessing:
		message = fmt.Sprintf("Payment for order %s is confirmed. Your requests are being processed.", cart.OrderCode)
		eventType = enums.EventCartProcessing
	case enums.CartStatusReadyToDeliver:
		message = fmt.Sprintf("Order %s is ready and will be dispatched shortly.", cart.OrderCode)
		eventType = enums.EventCartReady
	case enums.CartStatusReadyToPickup:
		message = fmt.Sprintf("Order %s is ready for pickup.", cart.OrderCode)
		eventType = enums.EventCartReady
	case enums.CartStatusCompleted:
		message = fmt.Sprintf("Order %s has been completed.", cart.OrderCode)
		eventType = enums.EventCartCompleted
		if cart.Delivery != nil && cart.Delivery.CourierName != nil {
			data["courierName"] = *cart.Delivery.CourierName
			data["trackingId"] = deref(cart.Delivery.TrackingID)
		}
	case enums.CartStatusCancelled:
		message = fmt.Sprintf("Order %s was cancelled: %s", cart.OrderCode, deref(cart.CancelReason))
		eventType = enums.EventCartCancelled
		data["reason"] = deref(cart.CancelReason)
	default:
		// onHold, refunded and paymentComplete only notify
		message = fmt.Sprintf("Order %s is now %s.", cart.OrderCode, cart.Status)
	}

	cartID := cart.ID
	if err := s.notify.EnqueueTx(ctx, tx, notifications.EnqueueInput{
		Recipient: user.MemberID,
		Actor:     actor,
		Message:   message,
		CartID:    &cartID,
	}); err != nil {
		return err
	}
	if eventType == "" {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePlacedCart,
		AggregateID:   cart.ID,
		Actor:         actor,
		Data:          data,
		Version:       1,
	})
}

func (s *service) TransitionOrder(ctx context.Context, placedOrderID uuid.UUID, to enums.OrderStatus, reason *string, actor string) (*models.PlacedOrder, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	var out *models.PlacedOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, placedOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "placed order not found")
			}
			return err
		}
		cart, err := repo.FindCart(ctx, order.PlacedCartID)
		if err != nil {
			return err
		}
		if err := lifecycle.EnsureOrderTransition(order.Status, to); err != nil {
			return err
		}
		if to != enums.OrderStatusCancelled && cart.Status != enums.CartStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
				WithDetails(fmt.Sprintf("cart %s is %s, not processing", cart.OrderCode, cart.Status))
		}

		now := time.Now().UTC()
		if err := s.moveOrder(ctx, repo, order, to, reason, actor, now); err != nil {
			return err
		}

		if err := s.evaluateAggregate(ctx, tx, repo, cart, actor, now); err != nil {
			return err
		}

		if to == enums.OrderStatusCancelled || to == enums.OrderStatusOnHold {
			user, err := s.users.FindByID(ctx, order.RequestedBy)
			if err != nil {
				return err
			}
			verb := "was cancelled"
			if to == enums.OrderStatusOnHold {
				verb = "is on hold"
			}
			detail := strings.TrimSpace(deref(reason))
			if detail != "" {
				detail = ": " + detail
			}
			cartID := cart.ID
			if err := s.notify.EnqueueTx(ctx, tx, notifications.EnqueueInput{
				Recipient: user.MemberID,
				Actor:     actor,
				Message:   fmt.Sprintf("Your request for %q in order %s %s%s", order.ServiceName, cart.OrderCode, verb, detail),
				CartID:    &cartID,
			}); err != nil {
				return err
			}
		}

		out = order
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition placed order")
	}
	return out, nil
}

func (s *service) ResumeOrder(ctx context.Context, userID, placedOrderID uuid.UUID, actor string) (*models.PlacedOrder, error) {
	var out *models.PlacedOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, placedOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "placed order not found")
			}
			return err
		}
		if order.RequestedBy != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "placed order not found")
		}
		if err := lifecycle.EnsureOrderTransition(order.Status, enums.OrderStatusProcessing); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.moveOrder(ctx, repo, order, enums.OrderStatusProcessing, nil, actor, now); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resume placed order")
	}
	return out, nil
}

func (s *service) moveOrder(ctx context.Context, repo PlacedRepository, order *models.PlacedOrder, to enums.OrderStatus, reason *string, actor string, now time.Time) error {
	moved, err := repo.UpdateOrderStatusCAS(ctx, order.ID, order.Status, to)
	if err != nil {
		return err
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails("order was modified by a concurrent request")
	}

	order.Status = to
	order.StatusTimeline.Record(to.String(), actor, now)
	switch to {
	case enums.OrderStatusCancelled:
		if trimmed := strings.TrimSpace(deref(reason)); trimmed != "" {
			order.CancelReason = &trimmed
		}
	case enums.OrderStatusOnHold:
		if trimmed := strings.TrimSpace(deref(reason)); trimmed != "" {
			order.HoldReason = &trimmed
		}
	case enums.OrderStatusProcessing:
		order.HoldReason = nil
	}
	return repo.SaveOrder(ctx, order)
}

// evaluateAggregate runs the cart's ready guard after every child change:
// when all live orders are ready the cart flips to its ready status exactly
// once; when everything is cancelled the cart cancels itself.
func (s *service) evaluateAggregate(ctx context.Context, tx *gorm.DB, repo PlacedRepository, cart *models.PlacedCart, actor string, now time.Time) error {
	if cart.Status != enums.CartStatusProcessing {
		return nil
	}
	orders, err := repo.ListOrdersByCart(ctx, cart.ID)
	if err != nil {
		return err
	}

	switch {
	case lifecycle.AllOrdersReady(orders):
		if cart.CollectionCategory == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart has no collection category")
		}
		ready, err := lifecycle.ReadyStatusFor(*cart.CollectionCategory)
		if err != nil {
			return err
		}
		moved, err := repo.UpdateCartStatusCAS(ctx, cart.ID, enums.CartStatusProcessing, ready)
		if err != nil {
			return err
		}
		if !moved {
			// another request already flipped it; the guard fires once
			return nil
		}
		cart.Status = ready
		cart.StatusTimeline.Record(ready.String(), actor, now)
		if err := repo.SaveCart(ctx, cart); err != nil {
			return err
		}
		return s.announceCartMove(ctx, tx, cart, TransitionCartInput{To: ready}, actor)

	case lifecycle.AllOrdersCancelled(orders):
		reason := "All requests in this order were cancelled"
		moved, err := repo.UpdateCartStatusCAS(ctx, cart.ID, enums.CartStatusProcessing, enums.CartStatusCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		cart.Status = enums.CartStatusCancelled
		cart.CancelReason = &reason
		setCollectionStatus(cart, enums.CollectionStatusCancelled)
		cart.StatusTimeline.Record(enums.CartStatusCancelled.String(), actor, now)
		if err := repo.SaveCart(ctx, cart); err != nil {
			return err
		}
		return s.announceCartMove(ctx, tx, cart, TransitionCartInput{To: enums.CartStatusCancelled}, actor)
	}
	return nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
