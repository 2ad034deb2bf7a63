package carts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/internal/pricing"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	dbtypes "github.com/campusdesk/campusdesk-backend/pkg/db/types"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// CartView is a revalidated cart: derived costs are fresh and validity
// errors are transient, recomputed on every read, never persisted as truth.
type CartView struct {
	Cart           *models.Cart
	ValidityErrors []string
}

// AddOrderInput is the payload for adding a service request to the cart.
type AddOrderInput struct {
	ServiceID    uuid.UUID
	Units        int
	ParameterIDs []uuid.UUID
	Comment      *string
}

// SetCollectionInput selects the cart's collection type plus the matching
// sub-resource details.
type SetCollectionInput struct {
	CollectionTypeID uuid.UUID
	Delivery         *DeliveryInput
	Pickup           *PickupInput
}

// DeliveryInput is the courier address payload.
type DeliveryInput struct {
	Name          string
	AddressLine1  string
	AddressLine2  string
	City          string
	State         string
	PinCode       string
	ContactNumber string
}

// PickupInput is the campus pickup payload.
type PickupInput struct {
	Location      string
	Slot          string
	ContactNumber string
}

// Service owns the live cart: reads revalidate and recompute, mutations
// re-price, and catalog cascades evict or invalidate.
type Service interface {
	CreateEmptyCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, actor string) (*models.Cart, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddOrder(ctx context.Context, userID uuid.UUID, input AddOrderInput) (*CartView, error)
	RemoveOrder(ctx context.Context, userID, orderID uuid.UUID) (*CartView, error)
	SetCollection(ctx context.Context, userID uuid.UUID, input SetCollectionInput) (*CartView, error)

	// ValidateForPayment revalidates and enforces the payment-time guards:
	// non-empty cart, valid collection selection, payment mode accepted by
	// every service. Returns the refreshed cart.
	ValidateForPayment(ctx context.Context, userID uuid.UUID, paymentType enums.PaymentType) (*models.Cart, error)

	EvictOrdersReferencingService(ctx context.Context, serviceID uuid.UUID) error
	EvictOrdersReferencingParameter(ctx context.Context, parameterID uuid.UUID) error
	InvalidateCartsReferencingCollectionType(ctx context.Context, collectionTypeID uuid.UUID) error
}

type service struct {
	repo    CartRepository
	catalog catalogReader
	users   userReader
	notify  notifier
	tx      txRunner
	logg    *logger.Logger
}

// NewService builds the cart service backed by the provided stack.
func NewService(repo CartRepository, catalog catalogReader, users userReader, notify notifier, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, catalog: catalog, users: users, notify: notify, tx: tx, logg: logg}, nil
}

// CreateEmptyCart allocates the user's next open cart. Called when an
// account is verified and again every time a cart is placed or invalidated,
// so the user always holds exactly one open cart.
func (s *service) CreateEmptyCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, actor string) (*models.Cart, error) {
	code, err := GenerateOrderCode(time.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order code")
	}

	timeline := types.StatusTimeline{}
	timeline.Record(enums.CartStatusUnplaced.String(), actor, time.Now().UTC())

	cart := &models.Cart{
		OrderCode:      code,
		RequestedBy:    userID,
		Status:         enums.CartStatusUnplaced,
		StatusTimeline: timeline,
	}
	repo := s.repo.WithTx(tx)
	created, err := repo.Create(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	cart, user, err := s.loadLiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	validity, err := s.revalidate(ctx, s.repo, cart, user)
	if err != nil {
		return nil, err
	}
	return &CartView{Cart: cart, ValidityErrors: validity}, nil
}

func (s *service) AddOrder(ctx context.Context, userID uuid.UUID, input AddOrderInput) (*CartView, error) {
	cart, user, err := s.loadLiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.Status != enums.CartStatusUnplaced && cart.Status != enums.CartStatusPaymentFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails("cart cannot be edited while payment is in flight")
	}

	svc, err := s.catalog.GetService(ctx, input.ServiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
	}

	serviceCost, err := pricing.ServiceCost(svc, input.Units, user)
	if err != nil {
		return nil, err
	}
	params, err := s.catalog.GetParameters(ctx, input.ParameterIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parameters")
	}
	parameterCost, err := pricing.ParameterCost(input.ParameterIDs, params, input.Units, svc.AllowedParameters)
	if err != nil {
		return nil, err
	}

	timeline := types.StatusTimeline{}
	timeline.Record(enums.OrderStatusUnplaced.String(), user.MemberID, time.Now().UTC())

	order := &models.Order{
		CartID:         cart.ID,
		RequestedBy:    userID,
		ServiceID:      svc.ID,
		ServiceName:    svc.Name,
		UnitsRequested: input.Units,
		ParameterIDs:   dbtypes.UUIDArray(input.ParameterIDs),
		ServiceCost:    serviceCost,
		ParameterCost:  parameterCost,
		TotalCost:      serviceCost + parameterCost,
		Status:         enums.OrderStatusUnplaced,
		StatusTimeline: timeline,
		Comment:        input.Comment,
	}
	if _, err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	return s.GetCart(ctx, userID)
}

func (s *service) RemoveOrder(ctx context.Context, userID, orderID uuid.UUID) (*CartView, error) {
	cart, _, err := s.loadLiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CartID != cart.ID || order.RequestedBy != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to your cart")
	}
	if order.Status >= enums.OrderStatusPlaced {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails("placed orders cannot be removed from a cart")
	}

	if _, err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) SetCollection(ctx context.Context, userID uuid.UUID, input SetCollectionInput) (*CartView, error) {
	cart, _, err := s.loadLiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.Status != enums.CartStatusUnplaced && cart.Status != enums.CartStatusPaymentFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails("cart cannot be edited while payment is in flight")
	}

	ct, err := s.catalog.GetCollectionType(ctx, input.CollectionTypeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection type")
	}
	if !ct.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPricing, "collection type is inactive")
	}

	switch ct.Category {
	case enums.CollectionCategoryDelivery:
		if input.Delivery == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery details are required for a delivery collection type")
		}
		if err := validateDeliveryInput(*input.Delivery); err != nil {
			return nil, err
		}
	case enums.CollectionCategoryPickup:
		if input.Pickup == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup details are required for a pickup collection type")
		}
		if err := validatePickupInput(*input.Pickup); err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		category := ct.Category
		cart.CollectionTypeID = &ct.ID
		cart.CollectionCategory = &category
		if _, err := repo.Save(ctx, cart); err != nil {
			return err
		}
		if ct.Category == enums.CollectionCategoryDelivery {
			d := input.Delivery
			return repo.UpsertDelivery(ctx, cart.ID, &models.Delivery{
				Name:          strings.TrimSpace(d.Name),
				AddressLine1:  strings.TrimSpace(d.AddressLine1),
				AddressLine2:  strings.TrimSpace(d.AddressLine2),
				City:          strings.TrimSpace(d.City),
				State:         strings.TrimSpace(d.State),
				PinCode:       strings.TrimSpace(d.PinCode),
				ContactNumber: strings.TrimSpace(d.ContactNumber),
				Status:        enums.CollectionStatusPending,
			})
		}
		p := input.Pickup
		return repo.UpsertPickup(ctx, cart.ID, &models.Pickup{
			Location:      strings.TrimSpace(p.Location),
			Slot:          strings.TrimSpace(p.Slot),
			ContactNumber: strings.TrimSpace(p.ContactNumber),
			Status:        enums.CollectionStatusPending,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set collection")
	}

	return s.GetCart(ctx, userID)
}

func (s *service) ValidateForPayment(ctx context.Context, userID uuid.UUID, paymentType enums.PaymentType) (*models.Cart, error) {
	if !paymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}

	cart, user, err := s.loadLiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.Status != enums.CartStatusUnplaced && cart.Status != enums.CartStatusPaymentFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails("a payment is already in flight for this cart")
	}

	validity, err := s.revalidate(ctx, s.repo, cart, user)
	if err != nil {
		return nil, err
	}
	if len(validity) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPricing, "cart has validity errors").WithDetails(validity)
	}
	if len(cart.Orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if cart.CollectionTypeID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a collection type must be selected before payment")
	}
	// re-price the collection with unset disallowed so payment never
	// proceeds on a stale selection
	if _, err := s.collectionCost(ctx, cart, false); err != nil {
		return nil, err
	}

	serviceIDs := make([]uuid.UUID, 0, len(cart.Orders))
	for i := range cart.Orders {
		serviceIDs = append(serviceIDs, cart.Orders[i].ServiceID)
	}
	services, err := s.catalog.GetServices(ctx, serviceIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart services")
	}
	for i := range services {
		if !paymentModeAllowed(services[i].PaymentModes, paymentType) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("service %q does not accept %s payment", services[i].Name, paymentType))
		}
	}

	return cart, nil
}

// EvictOrdersReferencingService drops every live order requesting a deleted
// service and notifies the owners.
func (s *service) EvictOrdersReferencingService(ctx context.Context, serviceID uuid.UUID) error {
	orders, err := s.repo.ListLiveOrdersByService(ctx, serviceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders by service")
	}
	return s.evictAll(ctx, orders, "the service was removed from the catalog")
}

// EvictOrdersReferencingParameter drops every live order whose parameter set
// contains a deleted parameter.
func (s *service) EvictOrdersReferencingParameter(ctx context.Context, parameterID uuid.UUID) error {
	orders, err := s.repo.ListLiveOrders(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list live orders")
	}
	matched := orders[:0]
	for _, order := range orders {
		if order.ParameterIDs.Contains(parameterID) {
			matched = append(matched, order)
		}
	}
	return s.evictAll(ctx, matched, "an add-on it used was removed from the catalog")
}

// InvalidateCartsReferencingCollectionType deletes every live cart that
// selected a removed collection type and allocates a fresh empty cart for
// each owner. Placed snapshots are never touched.
func (s *service) InvalidateCartsReferencingCollectionType(ctx context.Context, collectionTypeID uuid.UUID) error {
	cartRows, err := s.repo.ListLiveCartsByCollectionType(ctx, collectionTypeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list carts by collection type")
	}

	for i := range cartRows {
		cart := cartRows[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			// CAS into invalid so a cart the user just placed is skipped
			moved, err := repo.UpdateStatusCAS(ctx, cart.ID, cart.Status, enums.CartStatusInvalid, nil)
			if err != nil {
				return err
			}
			if !moved {
				return nil
			}
			if err := repo.Delete(ctx, cart.ID); err != nil {
				return err
			}
			if _, err := s.CreateEmptyCart(ctx, tx, cart.RequestedBy, types.SystemActor); err != nil {
				return err
			}

			recipient, err := s.recipientFor(ctx, cart.RequestedBy)
			if err != nil {
				return err
			}
			cartID := cart.ID
			return s.notify.EnqueueTx(ctx, tx, notifications.EnqueueInput{
				Recipient: recipient,
				Message:   fmt.Sprintf("Cart %s was invalidated because its collection method is no longer offered. A fresh cart has been created for you.", cart.OrderCode),
				CartID:    &cartID,
			})
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate cart")
		}
	}
	return nil
}

func (s *service) evictAll(ctx context.Context, orders []models.Order, reason string) error {
	for i := range orders {
		order := orders[i]
		cart, err := s.repo.FindByID(ctx, order.CartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart for eviction")
		}
		if err := s.evictOrder(ctx, s.repo, cart, &order, reason); err != nil {
			return err
		}
		if user, err := s.users.FindByID(ctx, cart.RequestedBy); err == nil {
			if _, err := s.revalidate(ctx, s.repo, cart, user); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *service) loadLiveCart(ctx context.Context, userID uuid.UUID) (*models.Cart, *models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	cart, err := s.repo.FindLiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open cart; has the account been verified?")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, user, nil
}

func paymentModeAllowed(modes []string, paymentType enums.PaymentType) bool {
	// a service that lists no modes accepts both protocols
	if len(modes) == 0 {
		return true
	}
	for _, mode := range modes {
		if strings.EqualFold(strings.TrimSpace(mode), string(paymentType)) {
			return true
		}
	}
	return false
}

func validateDeliveryInput(d DeliveryInput) error {
	missing := []string{}
	for field, value := range map[string]string{
		"name":           d.Name,
		"address_line1":  d.AddressLine1,
		"city":           d.City,
		"state":          d.State,
		"pin_code":       d.PinCode,
		"contact_number": d.ContactNumber,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "incomplete delivery details").WithDetails(missing)
	}
	return nil
}

func validatePickupInput(p PickupInput) error {
	if strings.TrimSpace(p.Location) == "" || strings.TrimSpace(p.ContactNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup location and contact number are required")
	}
	return nil
}
