package placement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
)

// Repository writes the immutable placed snapshots.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a placement repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) PlacedWriter {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreatePlacedCart inserts the placed cart row without its orders.
func (r *Repository) CreatePlacedCart(ctx context.Context, row *models.PlacedCart) error {
	return r.db.WithContext(ctx).Omit("Orders").Create(row).Error
}

// CreatePlacedOrder inserts one frozen order row.
func (r *Repository) CreatePlacedOrder(ctx context.Context, row *models.PlacedOrder) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// FindByPaymentCode loads a snapshot by the offline payment code stamped at
// placement time.
func (r *Repository) FindByPaymentCode(ctx context.Context, code string) (*models.PlacedCart, error) {
	var row models.PlacedCart
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("payment_code = ?", code).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindBySourceCartID loads a snapshot by the live cart it was frozen from.
func (r *Repository) FindBySourceCartID(ctx context.Context, sourceCartID uuid.UUID) (*models.PlacedCart, error) {
	var row models.PlacedCart
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("source_cart_id = ?", sourceCartID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
