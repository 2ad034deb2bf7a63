package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
)

// Repository exposes persistence for the catalog stores: services,
// parameters and collection types.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CatalogRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateService inserts a catalog service.
func (r *Repository) CreateService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	if err := r.db.WithContext(ctx).Create(svc).Error; err != nil {
		return nil, err
	}
	return svc, nil
}

// UpdateService saves the provided service.
func (r *Repository) UpdateService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	if err := r.db.WithContext(ctx).Save(svc).Error; err != nil {
		return nil, err
	}
	return svc, nil
}

// DeleteService removes a service row.
func (r *Repository) DeleteService(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Service{}).Error
}

// GetService loads one service by id.
func (r *Repository) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&svc).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}

// GetServices loads the services with the provided ids.
func (r *Repository) GetServices(ctx context.Context, ids []uuid.UUID) ([]models.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Service
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListServices returns catalog services, optionally only active ones.
func (r *Repository) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.Service
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateParameter inserts a catalog parameter.
func (r *Repository) CreateParameter(ctx context.Context, param *models.Parameter) (*models.Parameter, error) {
	if err := r.db.WithContext(ctx).Create(param).Error; err != nil {
		return nil, err
	}
	return param, nil
}

// UpdateParameter saves the provided parameter.
func (r *Repository) UpdateParameter(ctx context.Context, param *models.Parameter) (*models.Parameter, error) {
	if err := r.db.WithContext(ctx).Save(param).Error; err != nil {
		return nil, err
	}
	return param, nil
}

// DeleteParameter removes a parameter row.
func (r *Repository) DeleteParameter(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Parameter{}).Error
}

// GetParameter loads one parameter by id.
func (r *Repository) GetParameter(ctx context.Context, id uuid.UUID) (*models.Parameter, error) {
	var param models.Parameter
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&param).Error; err != nil {
		return nil, err
	}
	return &param, nil
}

// GetParameters loads the parameters with the provided ids.
func (r *Repository) GetParameters(ctx context.Context, ids []uuid.UUID) ([]models.Parameter, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Parameter
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListParameters returns catalog parameters, optionally only active ones.
func (r *Repository) ListParameters(ctx context.Context, activeOnly bool) ([]models.Parameter, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.Parameter
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateCollectionType inserts a catalog collection type.
func (r *Repository) CreateCollectionType(ctx context.Context, ct *models.CollectionType) (*models.CollectionType, error) {
	if err := r.db.WithContext(ctx).Create(ct).Error; err != nil {
		return nil, err
	}
	return ct, nil
}

// UpdateCollectionType saves the provided collection type.
func (r *Repository) UpdateCollectionType(ctx context.Context, ct *models.CollectionType) (*models.CollectionType, error) {
	if err := r.db.WithContext(ctx).Save(ct).Error; err != nil {
		return nil, err
	}
	return ct, nil
}

// DeleteCollectionType removes a collection type row.
func (r *Repository) DeleteCollectionType(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CollectionType{}).Error
}

// GetCollectionType loads one collection type by id.
func (r *Repository) GetCollectionType(ctx context.Context, id uuid.UUID) (*models.CollectionType, error) {
	var ct models.CollectionType
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ct).Error; err != nil {
		return nil, err
	}
	return &ct, nil
}

// ListCollectionTypes returns catalog collection types, optionally only active ones.
func (r *Repository) ListCollectionTypes(ctx context.Context, activeOnly bool) ([]models.CollectionType, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.CollectionType
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListServicesReferencingParameter returns services whose allowed parameter
// set contains the id. Scanned in Go rather than with array operators so the
// query stays portable across postgres and the sqlite test driver.
func (r *Repository) ListServicesReferencingParameter(ctx context.Context, id uuid.UUID) ([]models.Service, error) {
	var rows []models.Service
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	matched := rows[:0]
	for _, svc := range rows {
		if svc.AllowedParameters.Contains(id) {
			matched = append(matched, svc)
		}
	}
	return matched, nil
}

// ListServicesReferencingCollectionType returns services whose allowed
// collection type set contains the id.
func (r *Repository) ListServicesReferencingCollectionType(ctx context.Context, id uuid.UUID) ([]models.Service, error) {
	var rows []models.Service
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	matched := rows[:0]
	for _, svc := range rows {
		if svc.AllowedCollectionTypes.Contains(id) {
			matched = append(matched, svc)
		}
	}
	return matched, nil
}
