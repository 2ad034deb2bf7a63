package carts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/internal/pricing"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
)

// revalidate re-prices every mutable order in the cart against the current
// catalog, evicting orders whose service or parameters have gone stale and
// recomputing the cart's derived cost columns. Idempotent: a second pass
// over the same state evicts nothing and emits no duplicate notices.
//
// Collection-type problems are surfaced as transient validity errors rather
// than evictions; payment submission rejects until the user fixes the
// selection.
func (s *service) revalidate(ctx context.Context, repo CartRepository, cart *models.Cart, user *models.User) ([]string, error) {
	var validity []string

	surviving := cart.Orders[:0]
	for i := range cart.Orders {
		order := cart.Orders[i]
		if order.Status >= enums.OrderStatusPlaced {
			surviving = append(surviving, order)
			continue
		}

		evictReason, err := s.repriceOrder(ctx, &order, user)
		if err != nil {
			return nil, err
		}
		if evictReason != "" {
			if err := s.evictOrder(ctx, repo, cart, &order, evictReason); err != nil {
				return nil, err
			}
			continue
		}

		if _, err := repo.SaveOrder(ctx, &order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save repriced order")
		}
		surviving = append(surviving, order)
	}
	cart.Orders = append([]models.Order(nil), surviving...)

	ordersCost := 0
	for i := range cart.Orders {
		ordersCost += cart.Orders[i].TotalCost
	}
	cart.OrdersCost = ordersCost

	collectionCost, collectionErr := s.collectionCost(ctx, cart, true)
	if collectionErr != nil {
		validity = append(validity, collectionErr.Error())
		collectionCost = 0
	}
	cart.CollectionTypeCost = collectionCost
	cart.TotalCost = cart.OrdersCost + cart.CollectionTypeCost

	if _, err := repo.Save(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save recomputed cart")
	}
	return validity, nil
}

// repriceOrder recomputes the order's cost columns in place. A non-empty
// reason means the order must be evicted.
func (s *service) repriceOrder(ctx context.Context, order *models.Order, user *models.User) (string, error) {
	svc, err := s.catalog.GetService(ctx, order.ServiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Sprintf("service %q is no longer available", order.ServiceName), nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
	}

	serviceCost, err := pricing.ServiceCost(svc, order.UnitsRequested, user)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeInvalidPricing) {
			return fmt.Sprintf("service %q can no longer be requested: %s", order.ServiceName, pkgerrors.As(err).Message()), nil
		}
		return "", err
	}

	params, err := s.catalog.GetParameters(ctx, order.ParameterIDs)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parameters")
	}
	parameterCost, err := pricing.ParameterCost(order.ParameterIDs, params, order.UnitsRequested, svc.AllowedParameters)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeInvalidPricing) {
			return fmt.Sprintf("an add-on of %q is no longer available", order.ServiceName), nil
		}
		return "", err
	}

	order.ServiceName = svc.Name
	order.ServiceCost = serviceCost
	order.ParameterCost = parameterCost
	order.TotalCost = serviceCost + parameterCost
	return "", nil
}

// evictOrder drops a stale order and tells its owner why. The notice is
// deduplicated on (cart, recipient, message) so replays stay silent.
func (s *service) evictOrder(ctx context.Context, repo CartRepository, cart *models.Cart, order *models.Order, reason string) error {
	deleted, err := repo.DeleteOrder(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "evict order")
	}
	if !deleted {
		// already evicted by a concurrent pass; nothing to announce
		return nil
	}

	recipient, err := s.recipientFor(ctx, order.RequestedBy)
	if err != nil {
		return err
	}
	cartID := cart.ID
	return s.notify.Enqueue(ctx, notifications.EnqueueInput{
		Recipient:    recipient,
		Message:      fmt.Sprintf("Your request for %q was removed from cart %s: %s", order.ServiceName, cart.OrderCode, reason),
		CartID:       &cartID,
		DedupeOnCart: true,
	})
}

// collectionCost prices the cart's collection selection against the catalog.
func (s *service) collectionCost(ctx context.Context, cart *models.Cart, allowUnset bool) (int, error) {
	if cart.CollectionTypeID == nil {
		return pricing.CollectionTypeCost(nil, nil, nil, allowUnset)
	}

	ct, err := s.catalog.GetCollectionType(ctx, *cart.CollectionTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "selected collection type is no longer available")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection type")
	}

	serviceIDs := make([]uuid.UUID, 0, len(cart.Orders))
	for i := range cart.Orders {
		serviceIDs = append(serviceIDs, cart.Orders[i].ServiceID)
	}
	services, err := s.catalog.GetServices(ctx, serviceIDs)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart services")
	}

	return pricing.CollectionTypeCost(ct, services, cart.CollectionCategory, allowUnset)
}

func (s *service) recipientFor(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user.MemberID, nil
}
