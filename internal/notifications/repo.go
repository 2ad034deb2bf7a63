package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
)

// Repository persists notification rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a notification repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) NotificationRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a notification row.
func (r *Repository) Create(ctx context.Context, row *models.Notification) (*models.Notification, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// ListForRecipient returns the recipient's notifications, newest first,
// including broadcasts.
func (r *Repository) ListForRecipient(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	q := r.db.WithContext(ctx).
		Where("recipient = ? OR recipient = ?", recipient, models.BroadcastRecipient).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkRead stamps readAt on a notification owned by the recipient.
func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID, recipient string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient = ? AND read_at IS NULL", id, recipient).
		Update("read_at", at).Error
}

// RewriteCartCorrelation repoints notifications from a live cart id to its
// placed snapshot id after placement.
func (r *Repository) RewriteCartCorrelation(ctx context.Context, fromCartID, toCartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("cart_id = ?", fromCartID).
		Update("cart_id", toCartID).Error
}

// ExistsForCartAndMessage reports whether an identical notice already exists,
// used to keep evictions idempotent.
func (r *Repository) ExistsForCartAndMessage(ctx context.Context, cartID uuid.UUID, recipient, message string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("cart_id = ? AND recipient = ? AND message = ?", cartID, recipient, message).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
