package carts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

// CartRepository abstracts live cart persistence.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository

	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindLiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindByPaymentCode(ctx context.Context, code string) (*models.Cart, error)
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.CartStatus, updates map[string]any) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (bool, error)
	ListLiveOrdersByService(ctx context.Context, serviceID uuid.UUID) ([]models.Order, error)
	ListLiveOrders(ctx context.Context) ([]models.Order, error)
	ListLiveCartsByCollectionType(ctx context.Context, collectionTypeID uuid.UUID) ([]models.Cart, error)
	ListStuckCarts(ctx context.Context, statuses []enums.CartStatus) ([]models.Cart, error)

	UpsertDelivery(ctx context.Context, cartID uuid.UUID, delivery *models.Delivery) error
	UpsertPickup(ctx context.Context, cartID uuid.UUID, pickup *models.Pickup) error
}

// catalogReader is the slice of the catalog the cart engine needs: current
// isActive/cost/eligibility state for pricing and validation.
type catalogReader interface {
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	GetServices(ctx context.Context, ids []uuid.UUID) ([]models.Service, error)
	GetParameters(ctx context.Context, ids []uuid.UUID) ([]models.Parameter, error)
	GetCollectionType(ctx context.Context, id uuid.UUID) (*models.CollectionType, error)
}

// userReader resolves users for eligibility checks and notifications.
type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// notifier is the notification sink slice used by validation/invalidations.
type notifier interface {
	Enqueue(ctx context.Context, input notifications.EnqueueInput) error
	EnqueueTx(ctx context.Context, tx *gorm.DB, input notifications.EnqueueInput) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
