package payments

import (
	"context"

	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
)

// CallbackRepository persists the unconditional gateway callback audit rows.
type CallbackRepository struct {
	db *gorm.DB
}

// NewCallbackRepository constructs the audit repository.
func NewCallbackRepository(db *gorm.DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

// Create inserts one audit row. Called before any verdict is taken on the
// callback, so disputed payments can always be reconciled from raw payloads.
func (r *CallbackRepository) Create(ctx context.Context, row *models.GatewayCallback) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ListByReference returns every callback received for a reference, newest
// first.
func (r *CallbackRepository) ListByReference(ctx context.Context, referenceNo string) ([]models.GatewayCallback, error) {
	var rows []models.GatewayCallback
	err := r.db.WithContext(ctx).
		Where("reference_no = ?", referenceNo).
		Order("received_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
