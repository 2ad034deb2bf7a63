package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	dbtypes "github.com/campusdesk/campusdesk-backend/pkg/db/types"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog administration with cascade invalidation: deleting
// a parameter or collection type scrubs it from every service's allowed set
// and evicts/invalidates live cart content referencing it. Placed snapshots
// are never touched.
type Service interface {
	CreateService(ctx context.Context, actor string, input ServiceInput) (*models.Service, error)
	UpdateService(ctx context.Context, actor string, id uuid.UUID, input ServiceInput) (*models.Service, error)
	DeleteService(ctx context.Context, id uuid.UUID) error
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)

	CreateParameter(ctx context.Context, actor string, input ParameterInput) (*models.Parameter, error)
	UpdateParameter(ctx context.Context, actor string, id uuid.UUID, input ParameterInput) (*models.Parameter, error)
	DeleteParameter(ctx context.Context, id uuid.UUID) error
	ListParameters(ctx context.Context, activeOnly bool) ([]models.Parameter, error)

	CreateCollectionType(ctx context.Context, actor string, input CollectionTypeInput) (*models.CollectionType, error)
	UpdateCollectionType(ctx context.Context, actor string, id uuid.UUID, input CollectionTypeInput) (*models.CollectionType, error)
	DeleteCollectionType(ctx context.Context, id uuid.UUID) error
	ListCollectionTypes(ctx context.Context, activeOnly bool) ([]models.CollectionType, error)
}

type service struct {
	repo  CatalogRepository
	tx    txRunner
	carts cartInvalidator
	logg  *logger.Logger
}

// NewService builds a catalog service backed by the provided stack.
func NewService(repo CatalogRepository, tx txRunner, carts cartInvalidator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart invalidator required")
	}
	return &service{repo: repo, tx: tx, carts: carts, logg: logg}, nil
}

// ServiceInput carries the admin payload for creating/updating a service.
type ServiceInput struct {
	Name                   string
	Description            string
	BaseCharge             int
	MaxUnits               int
	IsActive               bool
	IsSpecial              bool
	SpecialMembers         []string
	AllowedProgrammes      []string
	AllowedBatches         []string
	AllowedUserTypes       []string
	AllowedUserStatuses    []string
	PaymentModes           []string
	AllowedParameters      []uuid.UUID
	AllowedCollectionTypes []uuid.UUID
}

// ParameterInput carries the admin payload for a parameter.
type ParameterInput struct {
	Name       string
	BaseCharge int
	IsActive   bool
}

// CollectionTypeInput carries the admin payload for a collection type.
type CollectionTypeInput struct {
	Name       string
	Category   enums.CollectionCategory
	BaseCharge int
	IsActive   bool
}

func (s *service) CreateService(ctx context.Context, actor string, input ServiceInput) (*models.Service, error) {
	if err := s.validateServiceInput(ctx, input); err != nil {
		return nil, err
	}
	svc := &models.Service{CreatedBy: actor}
	applyServiceInput(svc, input)
	created, err := s.repo.CreateService(ctx, svc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create service")
	}
	return created, nil
}

func (s *service) UpdateService(ctx context.Context, actor string, id uuid.UUID, input ServiceInput) (*models.Service, error) {
	if err := s.validateServiceInput(ctx, input); err != nil {
		return nil, err
	}
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
	}
	applyServiceInput(svc, input)
	updated, err := s.repo.UpdateService(ctx, svc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update service")
	}
	return updated, nil
}

// DeleteService removes the service and evicts every live order requesting
// it. Placed orders keep their denormalized copy.
func (s *service) DeleteService(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetService(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
	}
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete service")
	}
	return s.carts.EvictOrdersReferencingService(ctx, id)
}

func (s *service) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
	}
	return svc, nil
}

func (s *service) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	rows, err := s.repo.ListServices(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list services")
	}
	return rows, nil
}

func (s *service) CreateParameter(ctx context.Context, actor string, input ParameterInput) (*models.Parameter, error) {
	if err := validateParameterInput(input); err != nil {
		return nil, err
	}
	param := &models.Parameter{
		Name:       strings.TrimSpace(input.Name),
		BaseCharge: input.BaseCharge,
		IsActive:   input.IsActive,
		CreatedBy:  actor,
	}
	created, err := s.repo.CreateParameter(ctx, param)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create parameter")
	}
	return created, nil
}

func (s *service) UpdateParameter(ctx context.Context, actor string, id uuid.UUID, input ParameterInput) (*models.Parameter, error) {
	if err := validateParameterInput(input); err != nil {
		return nil, err
	}
	param, err := s.repo.GetParameter(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "parameter not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parameter")
	}
	param.Name = strings.TrimSpace(input.Name)
	param.BaseCharge = input.BaseCharge
	param.IsActive = input.IsActive
	updated, err := s.repo.UpdateParameter(ctx, param)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update parameter")
	}
	return updated, nil
}

// DeleteParameter removes the parameter, scrubs it from every service's
// allowed set in one transaction, then evicts live orders referencing it.
func (s *service) DeleteParameter(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetParameter(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "parameter not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parameter")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		referencing, err := repo.ListServicesReferencingParameter(ctx, id)
		if err != nil {
			return err
		}
		for i := range referencing {
			referencing[i].AllowedParameters = removeUUID(referencing[i].AllowedParameters, id)
			if _, err := repo.UpdateService(ctx, &referencing[i]); err != nil {
				return err
			}
		}
		return repo.DeleteParameter(ctx, id)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete parameter")
	}

	return s.carts.EvictOrdersReferencingParameter(ctx, id)
}

func (s *service) ListParameters(ctx context.Context, activeOnly bool) ([]models.Parameter, error) {
	rows, err := s.repo.ListParameters(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list parameters")
	}
	return rows, nil
}

func (s *service) CreateCollectionType(ctx context.Context, actor string, input CollectionTypeInput) (*models.CollectionType, error) {
	if err := validateCollectionTypeInput(input); err != nil {
		return nil, err
	}
	ct := &models.CollectionType{
		Name:       strings.TrimSpace(input.Name),
		Category:   input.Category,
		BaseCharge: input.BaseCharge,
		IsActive:   input.IsActive,
		CreatedBy:  actor,
	}
	created, err := s.repo.CreateCollectionType(ctx, ct)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create collection type")
	}
	return created, nil
}

func (s *service) UpdateCollectionType(ctx context.Context, actor string, id uuid.UUID, input CollectionTypeInput) (*models.CollectionType, error) {
	if err := validateCollectionTypeInput(input); err != nil {
		return nil, err
	}
	ct, err := s.repo.GetCollectionType(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection type")
	}
	ct.Name = strings.TrimSpace(input.Name)
	ct.Category = input.Category
	ct.BaseCharge = input.BaseCharge
	ct.IsActive = input.IsActive
	updated, err := s.repo.UpdateCollectionType(ctx, ct)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update collection type")
	}
	return updated, nil
}

// DeleteCollectionType removes the collection type, scrubs it from every
// service's accepted set, then invalidates live carts that selected it.
func (s *service) DeleteCollectionType(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetCollectionType(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "collection type not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection type")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		referencing, err := repo.ListServicesReferencingCollectionType(ctx, id)
		if err != nil {
			return err
		}
		for i := range referencing {
			referencing[i].AllowedCollectionTypes = removeUUID(referencing[i].AllowedCollectionTypes, id)
			if _, err := repo.UpdateService(ctx, &referencing[i]); err != nil {
				return err
			}
		}
		return repo.DeleteCollectionType(ctx, id)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete collection type")
	}

	return s.carts.InvalidateCartsReferencingCollectionType(ctx, id)
}

func (s *service) ListCollectionTypes(ctx context.Context, activeOnly bool) ([]models.CollectionType, error) {
	rows, err := s.repo.ListCollectionTypes(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collection types")
	}
	return rows, nil
}

func (s *service) validateServiceInput(ctx context.Context, input ServiceInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "service name is required")
	}
	if input.BaseCharge < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "base charge cannot be negative")
	}
	if input.MaxUnits < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max units must be at least 1")
	}
	if input.IsSpecial && len(input.SpecialMembers) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "special services require an allow-list")
	}
	for _, mode := range input.PaymentModes {
		if !enums.PaymentType(mode).IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment mode %q", mode))
		}
	}

	if len(input.AllowedParameters) > 0 {
		params, err := s.repo.GetParameters(ctx, input.AllowedParameters)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allowed parameters")
		}
		if len(params) != len(dedupeUUIDs(input.AllowedParameters)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "allowed parameters reference unknown entries")
		}
	}
	for _, id := range input.AllowedCollectionTypes {
		if _, err := s.repo.GetCollectionType(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "allowed collection types reference unknown entries")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allowed collection type")
		}
	}
	return nil
}

func validateParameterInput(input ParameterInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "parameter name is required")
	}
	if input.BaseCharge < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "base charge cannot be negative")
	}
	return nil
}

func validateCollectionTypeInput(input CollectionTypeInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "collection type name is required")
	}
	if !input.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown collection category")
	}
	if input.BaseCharge < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "base charge cannot be negative")
	}
	return nil
}

func applyServiceInput(svc *models.Service, input ServiceInput) {
	svc.Name = strings.TrimSpace(input.Name)
	svc.Description = input.Description
	svc.BaseCharge = input.BaseCharge
	svc.MaxUnits = input.MaxUnits
	svc.IsActive = input.IsActive
	svc.IsSpecial = input.IsSpecial
	svc.SpecialMembers = input.SpecialMembers
	svc.AllowedProgrammes = input.AllowedProgrammes
	svc.AllowedBatches = input.AllowedBatches
	svc.AllowedUserTypes = input.AllowedUserTypes
	svc.AllowedUserStatuses = input.AllowedUserStatuses
	svc.PaymentModes = input.PaymentModes
	svc.AllowedParameters = dbtypes.UUIDArray(dedupeUUIDs(input.AllowedParameters))
	svc.AllowedCollectionTypes = dbtypes.UUIDArray(dedupeUUIDs(input.AllowedCollectionTypes))
}

func removeUUID(ids dbtypes.UUIDArray, target uuid.UUID) dbtypes.UUIDArray {
	out := make(dbtypes.UUIDArray, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func dedupeUUIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
