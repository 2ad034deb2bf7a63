package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/pagination"
)

// PlacedRepository is the fulfillment-side view of placed snapshots: loads
// for the dashboard, conditional status moves, and saves that never touch
// the frozen pricing columns.
type PlacedRepository interface {
	WithTx(tx *gorm.DB) PlacedRepository

	FindCart(ctx context.Context, id uuid.UUID) (*models.PlacedCart, error)
	ListCartsByUser(ctx context.Context, userID uuid.UUID) ([]models.PlacedCart, error)
	ListCarts(ctx context.Context, query ListCartsQuery) ([]models.PlacedCart, *pagination.Cursor, error)
	ListAwaitingPayment(ctx context.Context) ([]models.PlacedCart, error)
	SaveCart(ctx context.Context, cart *models.PlacedCart) error
	UpdateCartStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.CartStatus) (bool, error)

	FindOrder(ctx context.Context, id uuid.UUID) (*models.PlacedOrder, error)
	ListOrdersByCart(ctx context.Context, placedCartID uuid.UUID) ([]models.PlacedOrder, error)
	SaveOrder(ctx context.Context, order *models.PlacedOrder) error
	UpdateOrderStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
}

// ListCartsQuery filters the admin pipeline dashboard.
type ListCartsQuery struct {
	Statuses []enums.CartStatus
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a placed-snapshot repository bound to the database.
func NewRepository(db *gorm.DB) PlacedRepository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) PlacedRepository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCart(ctx context.Context, id uuid.UUID) (*models.PlacedCart, error) {
	var cart models.PlacedCart
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) ListCartsByUser(ctx context.Context, userID uuid.UUID) ([]models.PlacedCart, error) {
	var carts []models.PlacedCart
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("requested_by = ?", userID).
		Order("placed_at DESC").
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

func (r *repository) ListCarts(ctx context.Context, params ListCartsQuery) ([]models.PlacedCart, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.PlacedCart{}).Preload("Orders")
	if len(params.Statuses) > 0 {
		query = query.Where("status IN (?)", params.Statuses)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var carts []models.PlacedCart
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&carts).Error; err != nil {
		return nil, nil, err
	}

	if len(carts) > limit {
		next := carts[limit]
		carts = carts[:limit]
		return carts, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return carts, nil, nil
}

// ListAwaitingPayment returns placed snapshots whose offline payment has not
// been confirmed yet, oldest first, for the payment-delay sweep.
func (r *repository) ListAwaitingPayment(ctx context.Context) ([]models.PlacedCart, error) {
	var carts []models.PlacedCart
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("status = ? AND payment_status = ?", enums.CartStatusPlaced, false).
		Order("placed_at ASC").
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// SaveCart writes the evolving fulfillment fields. Orders are saved through
// their own path so the association never cascades stale copies.
func (r *repository) SaveCart(ctx context.Context, cart *models.PlacedCart) error {
	return r.db.WithContext(ctx).Omit("Orders").Save(cart).Error
}

// UpdateCartStatusCAS moves the status only when the row still holds from.
// RowsAffected 0 means another request moved it first.
func (r *repository) UpdateCartStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.CartStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PlacedCart{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.PlacedOrder, error) {
	var order models.PlacedOrder
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrdersByCart(ctx context.Context, placedCartID uuid.UUID) ([]models.PlacedOrder, error) {
	var orders []models.PlacedOrder
	err := r.db.WithContext(ctx).
		Where("placed_cart_id = ?", placedCartID).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) SaveOrder(ctx context.Context, order *models.PlacedOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) UpdateOrderStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PlacedOrder{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
