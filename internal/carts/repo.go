package carts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

// Repository exposes persistence for live carts and their child rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// Save persists the cart's scalar fields.
func (r *Repository) Save(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Omit("Orders", "Delivery", "Pickup").Save(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindLiveByUser loads the user's single open cart with its children. Open
// means the cart has not yet been placed.
func (r *Repository) FindLiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Delivery").
		Preload("Pickup").
		Where("requested_by = ? AND status < ?", userID, enums.CartStatusPlaced).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID loads a cart with its children.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Delivery").
		Preload("Pickup").
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByPaymentCode loads a live cart by its offline payment code.
func (r *Repository) FindByPaymentCode(ctx context.Context, code string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Preload("Delivery").
		Preload("Pickup").
		Where("payment_code = ?", code).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpdateStatusCAS moves the cart's status only if it still holds the
// expected prior status, returning whether the swap applied.
func (r *Repository) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.CartStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete hard-removes the live cart and its children. Placed snapshots are
// never touched here.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("cart_id = ?", id).Delete(&models.Order{}).Error; err != nil {
		return err
	}
	if err := db.Where("cart_id = ?", id).Delete(&models.Delivery{}).Error; err != nil {
		return err
	}
	if err := db.Where("cart_id = ?", id).Delete(&models.Pickup{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.Cart{}).Error
}

// CreateOrder inserts an order row.
func (r *Repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// SaveOrder persists an order row.
func (r *Repository) SaveOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Save(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindOrder loads one order row.
func (r *Repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder removes an order row, reporting whether a row was deleted.
func (r *Repository) DeleteOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListLiveOrdersByService returns unplaced orders requesting the service.
func (r *Repository) ListLiveOrdersByService(ctx context.Context, serviceID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("service_id = ? AND status < ?", serviceID, enums.OrderStatusPlaced).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListLiveOrders returns every unplaced order. Parameter references live in
// a uuid array column, so membership is filtered in Go for portability.
func (r *Repository) ListLiveOrders(ctx context.Context) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status < ?", enums.OrderStatusPlaced).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListLiveCartsByCollectionType returns open carts that selected the
// collection type.
func (r *Repository) ListLiveCartsByCollectionType(ctx context.Context, collectionTypeID uuid.UUID) ([]models.Cart, error) {
	var rows []models.Cart
	err := r.db.WithContext(ctx).
		Where("collection_type_id = ? AND status < ?", collectionTypeID, enums.CartStatusPlaced).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStuckCarts returns carts sitting in a payment-pending status, oldest
// first, for the sweeper.
func (r *Repository) ListStuckCarts(ctx context.Context, statuses []enums.CartStatus) ([]models.Cart, error) {
	var rows []models.Cart
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("status IN ?", statuses).
		Order("updated_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertDelivery replaces the cart's collection sub-resources with the
// provided delivery address.
func (r *Repository) UpsertDelivery(ctx context.Context, cartID uuid.UUID, delivery *models.Delivery) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("cart_id = ?", cartID).Delete(&models.Pickup{}).Error; err != nil {
		return err
	}
	if err := db.Where("cart_id = ?", cartID).Delete(&models.Delivery{}).Error; err != nil {
		return err
	}
	delivery.CartID = cartID
	return db.Create(delivery).Error
}

// UpsertPickup replaces the cart's collection sub-resources with the
// provided pickup details.
func (r *Repository) UpsertPickup(ctx context.Context, cartID uuid.UUID, pickup *models.Pickup) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("cart_id = ?", cartID).Delete(&models.Delivery{}).Error; err != nil {
		return err
	}
	if err := db.Where("cart_id = ?", cartID).Delete(&models.Pickup{}).Error; err != nil {
		return err
	}
	pickup.CartID = cartID
	return db.Create(pickup).Error
}
