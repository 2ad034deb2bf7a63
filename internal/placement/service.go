package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/carts"
	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// PlacedWriter abstracts snapshot persistence so tests can inject faults
// between the individual writes.
type PlacedWriter interface {
	WithTx(tx *gorm.DB) PlacedWriter
	CreatePlacedCart(ctx context.Context, row *models.PlacedCart) error
	CreatePlacedOrder(ctx context.Context, row *models.PlacedOrder) error
	FindBySourceCartID(ctx context.Context, sourceCartID uuid.UUID) (*models.PlacedCart, error)
}

type catalogReader interface {
	GetCollectionType(ctx context.Context, id uuid.UUID) (*models.CollectionType, error)
	GetParameters(ctx context.Context, ids []uuid.UUID) ([]models.Parameter, error)
}

type cartAllocator interface {
	CreateEmptyCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, actor string) (*models.Cart, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type notifier interface {
	EnqueueTx(ctx context.Context, tx *gorm.DB, input notifications.EnqueueInput) error
	RewriteCartCorrelation(ctx context.Context, tx *gorm.DB, fromCartID, toCartID uuid.UUID) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentStamp carries the payment fields frozen onto the snapshot.
type PaymentStamp struct {
	Type          enums.PaymentType
	PaymentID     *string
	PaymentCode   *string
	PaymentStatus bool
}

// Service freezes a cart into its immutable placed snapshot. The entire
// operation runs in one transaction: PlacedOrders + PlacedCart are written,
// the live cart is discarded, a fresh empty cart is allocated and the
// notification correlation is rewritten. Partial snapshots are never
// visible to readers.
type Service interface {
	PlaceCart(ctx context.Context, cart *models.Cart, actor string, stamp PaymentStamp) (*models.PlacedCart, error)
}

type service struct {
	placed   PlacedWriter
	cartsvc  cartAllocator
	cartRepo carts.CartRepository
	catalog  catalogReader
	users    userReader
	notify   notifier
	events   eventEmitter
	tx       txRunner
	logg     *logger.Logger
}

// NewService builds the snapshot writer.
func NewService(
	placed PlacedWriter,
	cartRepo carts.CartRepository,
	cartsvc cartAllocator,
	catalog catalogReader,
	users userReader,
	notify notifier,
	events eventEmitter,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if placed == nil || cartRepo == nil || cartsvc == nil || catalog == nil || users == nil || notify == nil || events == nil || tx == nil {
		return nil, fmt.Errorf("placement service is missing a dependency")
	}
	return &service{
		placed:   placed,
		cartRepo: cartRepo,
		cartsvc:  cartsvc,
		catalog:  catalog,
		users:    users,
		notify:   notify,
		events:   events,
		tx:       tx,
		logg:     logg,
	}, nil
}

func (s *service) PlaceCart(ctx context.Context, cart *models.Cart, actor string, stamp PaymentStamp) (*models.PlacedCart, error) {
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	if !stamp.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}

	// retry after a previous successful placement is a no-op
	if existing, err := s.placed.FindBySourceCartID(ctx, cart.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing snapshot")
	}

	user, err := s.users.FindByID(ctx, cart.RequestedBy)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart owner")
	}

	collection, deliverySnap, pickupSnap, err := s.freezeCollection(ctx, cart)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var placedCart *models.PlacedCart

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		placed := s.placed.WithTx(tx)

		// CAS into placed; a cart concurrently moved by another request is
		// rejected rather than force-placed
		moved, err := cartRepo.UpdateStatusCAS(ctx, cart.ID, cart.Status, enums.CartStatusPlaced, nil)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
				WithDetails("cart was modified by a concurrent request")
		}

		timeline := cloneTimeline(cart.StatusTimeline)
		timeline.Record(enums.CartStatusPlaced.String(), actor, now)

		row := &models.PlacedCart{
			SourceCartID:       cart.ID,
			OrderCode:          cart.OrderCode,
			RequestedBy:        cart.RequestedBy,
			Status:             enums.CartStatusPlaced,
			CollectionType:     collection,
			CollectionCategory: cart.CollectionCategory,
			Delivery:           deliverySnap,
			Pickup:             pickupSnap,
			CollectionTypeCost: cart.CollectionTypeCost,
			OrdersCost:         cart.OrdersCost,
			TotalCost:          cart.TotalCost,
			PaymentType:        stamp.Type,
			PaymentID:          stamp.PaymentID,
			PaymentCode:        stamp.PaymentCode,
			PaymentStatus:      stamp.PaymentStatus,
			PaymentFailHistory: cart.PaymentFailHistory,
			StatusTimeline:     timeline,
			Comments:           cart.Comments,
			PlacedAt:           now,
		}
		if err := placed.CreatePlacedCart(ctx, row); err != nil {
			return err
		}

		for i := range cart.Orders {
			order := cart.Orders[i]
			frozen, err := s.freezeOrder(ctx, row.ID, &order, actor, now)
			if err != nil {
				return err
			}
			if err := placed.CreatePlacedOrder(ctx, frozen); err != nil {
				return err
			}
			row.Orders = append(row.Orders, *frozen)
		}

		// discard the live cart and hand the user a fresh one
		if err := cartRepo.Delete(ctx, cart.ID); err != nil {
			return err
		}
		if _, err := s.cartsvc.CreateEmptyCart(ctx, tx, cart.RequestedBy, actor); err != nil {
			return err
		}

		if err := s.notify.RewriteCartCorrelation(ctx, tx, cart.ID, row.ID); err != nil {
			return err
		}
		placedID := row.ID
		if err := s.notify.EnqueueTx(ctx, tx, notifications.EnqueueInput{
			Recipient: user.MemberID,
			Actor:     actor,
			Message:   fmt.Sprintf("Order %s has been placed.", row.OrderCode),
			CartID:    &placedID,
		}); err != nil {
			return err
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartPlaced,
			AggregateType: enums.AggregatePlacedCart,
			AggregateID:   row.ID,
			Actor:         actor,
			Data: map[string]any{
				"orderCode":   row.OrderCode,
				"memberId":    user.MemberID,
				"email":       user.Email,
				"totalCost":   row.TotalCost,
				"paymentType": string(stamp.Type),
			},
			Version: 1,
		}); err != nil {
			return err
		}

		placedCart = row
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "place cart")
	}

	return placedCart, nil
}

// freezeCollection copies the collection type and sub-resource values so
// later catalog edits never alter the snapshot.
func (s *service) freezeCollection(ctx context.Context, cart *models.Cart) (*types.CollectionSnapshot, *types.DeliverySnapshot, *types.PickupSnapshot, error) {
	if cart.CollectionTypeID == nil {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "a collection type must be selected before placement")
	}
	ct, err := s.catalog.GetCollectionType(ctx, *cart.CollectionTypeID)
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection type")
	}

	collection := &types.CollectionSnapshot{
		CollectionTypeID: ct.ID.String(),
		Name:             ct.Name,
		Category:         string(ct.Category),
		BaseCharge:       ct.BaseCharge,
	}

	var deliverySnap *types.DeliverySnapshot
	var pickupSnap *types.PickupSnapshot
	switch {
	case cart.Delivery != nil:
		d := cart.Delivery
		deliverySnap = &types.DeliverySnapshot{
			Name:          d.Name,
			AddressLine1:  d.AddressLine1,
			AddressLine2:  d.AddressLine2,
			City:          d.City,
			State:         d.State,
			PinCode:       d.PinCode,
			ContactNumber: d.ContactNumber,
			Status:        string(enums.CollectionStatusPending),
		}
	case cart.Pickup != nil:
		p := cart.Pickup
		pickupSnap = &types.PickupSnapshot{
			Location:      p.Location,
			Slot:          p.Slot,
			ContactNumber: p.ContactNumber,
			Status:        string(enums.CollectionStatusPending),
		}
	default:
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "collection details are missing")
	}

	return collection, deliverySnap, pickupSnap, nil
}

// freezeOrder copies service and parameter values into a PlacedOrder.
func (s *service) freezeOrder(ctx context.Context, placedCartID uuid.UUID, order *models.Order, actor string, now time.Time) (*models.PlacedOrder, error) {
	params, err := s.catalog.GetParameters(ctx, order.ParameterIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order parameters")
	}
	snapshots := make(types.ParameterSnapshots, 0, len(params))
	for _, p := range params {
		snapshots = append(snapshots, types.ParameterSnapshot{
			ParameterID: p.ID.String(),
			Name:        p.Name,
			BaseCharge:  p.BaseCharge,
		})
	}

	timeline := cloneTimeline(order.StatusTimeline)
	timeline.Record(enums.OrderStatusPlaced.String(), actor, now)

	baseCharge := 0
	if order.UnitsRequested > 0 {
		baseCharge = order.ServiceCost / order.UnitsRequested
	}

	return &models.PlacedOrder{
		PlacedCartID:      placedCartID,
		SourceOrderID:     order.ID,
		RequestedBy:       order.RequestedBy,
		ServiceID:         order.ServiceID,
		ServiceName:       order.ServiceName,
		ServiceBaseCharge: baseCharge,
		UnitsRequested:    order.UnitsRequested,
		Parameters:        snapshots,
		ServiceCost:       order.ServiceCost,
		ParameterCost:     order.ParameterCost,
		TotalCost:         order.TotalCost,
		Status:            enums.OrderStatusPlaced,
		StatusTimeline:    timeline,
		Comment:           order.Comment,
	}, nil
}

func cloneTimeline(in types.StatusTimeline) types.StatusTimeline {
	out := types.StatusTimeline{}
	for k, v := range in {
		out[k] = v
	}
	return out
}
