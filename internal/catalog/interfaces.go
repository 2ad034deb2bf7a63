package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
)

// CatalogRepository abstracts persistence for catalog stores.
type CatalogRepository interface {
	WithTx(tx *gorm.DB) CatalogRepository

	CreateService(ctx context.Context, svc *models.Service) (*models.Service, error)
	UpdateService(ctx context.Context, svc *models.Service) (*models.Service, error)
	DeleteService(ctx context.Context, id uuid.UUID) error
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	GetServices(ctx context.Context, ids []uuid.UUID) ([]models.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)

	CreateParameter(ctx context.Context, param *models.Parameter) (*models.Parameter, error)
	UpdateParameter(ctx context.Context, param *models.Parameter) (*models.Parameter, error)
	DeleteParameter(ctx context.Context, id uuid.UUID) error
	GetParameter(ctx context.Context, id uuid.UUID) (*models.Parameter, error)
	GetParameters(ctx context.Context, ids []uuid.UUID) ([]models.Parameter, error)
	ListParameters(ctx context.Context, activeOnly bool) ([]models.Parameter, error)

	CreateCollectionType(ctx context.Context, ct *models.CollectionType) (*models.CollectionType, error)
	UpdateCollectionType(ctx context.Context, ct *models.CollectionType) (*models.CollectionType, error)
	DeleteCollectionType(ctx context.Context, id uuid.UUID) error
	GetCollectionType(ctx context.Context, id uuid.UUID) (*models.CollectionType, error)
	ListCollectionTypes(ctx context.Context, activeOnly bool) ([]models.CollectionType, error)

	ListServicesReferencingParameter(ctx context.Context, id uuid.UUID) ([]models.Service, error)
	ListServicesReferencingCollectionType(ctx context.Context, id uuid.UUID) ([]models.Service, error)
}

// cartInvalidator is the slice of the carts service the catalog cascade
// needs: evicting live orders and invalidating live carts whose referenced
// catalog rows disappear.
type cartInvalidator interface {
	EvictOrdersReferencingService(ctx context.Context, serviceID uuid.UUID) error
	EvictOrdersReferencingParameter(ctx context.Context, parameterID uuid.UUID) error
	InvalidateCartsReferencingCollectionType(ctx context.Context, collectionTypeID uuid.UUID) error
}
