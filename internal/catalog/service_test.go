package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

type memCatalogRepo struct {
	services        map[uuid.UUID]*models.Service
	parameters      map[uuid.UUID]*models.Parameter
	collectionTypes map[uuid.UUID]*models.CollectionType
}

func newMemCatalogRepo() *memCatalogRepo {
	return &memCatalogRepo{
		services:        map[uuid.UUID]*models.Service{},
		parameters:      map[uuid.UUID]*models.Parameter{},
		collectionTypes: map[uuid.UUID]*models.CollectionType{},
	}
}

func (m *memCatalogRepo) WithTx(tx *gorm.DB) CatalogRepository { return m }

func (m *memCatalogRepo) CreateService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	stored := *svc
	m.services[svc.ID] = &stored
	return svc, nil
}

func (m *memCatalogRepo) UpdateService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	stored := *svc
	m.services[svc.ID] = &stored
	return svc, nil
}

func (m *memCatalogRepo) DeleteService(ctx context.Context, id uuid.UUID) error {
	delete(m.services, id)
	return nil
}

func (m *memCatalogRepo) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, ok := m.services[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *svc
	return &copied, nil
}

func (m *memCatalogRepo) GetServices(ctx context.Context, ids []uuid.UUID) ([]models.Service, error) {
	var out []models.Service
	for _, id := range ids {
		if svc, ok := m.services[id]; ok {
			out = append(out, *svc)
		}
	}
	return out, nil
}

func (m *memCatalogRepo) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	var out []models.Service
	for _, svc := range m.services {
		if activeOnly && !svc.IsActive {
			continue
		}
		out = append(out, *svc)
	}
	return out, nil
}

func (m *memCatalogRepo) CreateParameter(ctx context.Context, param *models.Parameter) (*models.Parameter, error) {
	if param.ID == uuid.Nil {
		param.ID = uuid.New()
	}
	stored := *param
	m.parameters[param.ID] = &stored
	return param, nil
}

func (m *memCatalogRepo) UpdateParameter(ctx context.Context, param *models.Parameter) (*models.Parameter, error) {
	stored := *param
	m.parameters[param.ID] = &stored
	return param, nil
}

func (m *memCatalogRepo) DeleteParameter(ctx context.Context, id uuid.UUID) error {
	delete(m.parameters, id)
	return nil
}

func (m *memCatalogRepo) GetParameter(ctx context.Context, id uuid.UUID) (*models.Parameter, error) {
	param, ok := m.parameters[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *param
	return &copied, nil
}

func (m *memCatalogRepo) GetParameters(ctx context.Context, ids []uuid.UUID) ([]models.Parameter, error) {
	var out []models.Parameter
	seen := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if param, ok := m.parameters[id]; ok {
			out = append(out, *param)
		}
	}
	return out, nil
}

func (m *memCatalogRepo) ListParameters(ctx context.Context, activeOnly bool) ([]models.Parameter, error) {
	var out []models.Parameter
	for _, param := range m.parameters {
		if activeOnly && !param.IsActive {
			continue
		}
		out = append(out, *param)
	}
	return out, nil
}

func (m *memCatalogRepo) CreateCollectionType(ctx context.Context, ct *models.CollectionType) (*models.CollectionType, error) {
	if ct.ID == uuid.Nil {
		ct.ID = uuid.New()
	}
	stored := *ct
	m.collectionTypes[ct.ID] = &stored
	return ct, nil
}

func (m *memCatalogRepo) UpdateCollectionType(ctx context.Context, ct *models.CollectionType) (*models.CollectionType, error) {
	stored := *ct
	m.collectionTypes[ct.ID] = &stored
	return ct, nil
}

func (m *memCatalogRepo) DeleteCollectionType(ctx context.Context, id uuid.UUID) error {
	delete(m.collectionTypes, id)
	return nil
}

func (m *memCatalogRepo) GetCollectionType(ctx context.Context, id uuid.UUID) (*models.CollectionType, error) {
	ct, ok := m.collectionTypes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *ct
	return &copied, nil
}

func (m *memCatalogRepo) ListCollectionTypes(ctx context.Context, activeOnly bool) ([]models.CollectionType, error) {
	var out []models.CollectionType
	for _, ct := range m.collectionTypes {
		if activeOnly && !ct.IsActive {
			continue
		}
		out = append(out, *ct)
	}
	return out, nil
}

func (m *memCatalogRepo) ListServicesReferencingParameter(ctx context.Context, id uuid.UUID) ([]models.Service, error) {
	var out []models.Service
	for _, svc := range m.services {
		if svc.AllowedParameters.Contains(id) {
			out = append(out, *svc)
		}
	}
	return out, nil
}

func (m *memCatalogRepo) ListServicesReferencingCollectionType(ctx context.Context, id uuid.UUID) ([]models.Service, error) {
	var out []models.Service
	for _, svc := range m.services {
		if svc.AllowedCollectionTypes.Contains(id) {
			out = append(out, *svc)
		}
	}
	return out, nil
}

type recordingInvalidator struct {
	evictedServices   []uuid.UUID
	evictedParameters []uuid.UUID
	invalidatedCTs    []uuid.UUID
}

func (r *recordingInvalidator) EvictOrdersReferencingService(ctx context.Context, serviceID uuid.UUID) error {
	r.evictedServices = append(r.evictedServices, serviceID)
	return nil
}

func (r *recordingInvalidator) EvictOrdersReferencingParameter(ctx context.Context, parameterID uuid.UUID) error {
	r.evictedParameters = append(r.evictedParameters, parameterID)
	return nil
}

func (r *recordingInvalidator) InvalidateCartsReferencingCollectionType(ctx context.Context, collectionTypeID uuid.UUID) error {
	r.invalidatedCTs = append(r.invalidatedCTs, collectionTypeID)
	return nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newCatalogFixture(t *testing.T) (Service, *memCatalogRepo, *recordingInvalidator) {
	t.Helper()
	repo := newMemCatalogRepo()
	invalidator := &recordingInvalidator{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, passTx{}, invalidator, logg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, repo, invalidator
}

func TestCreateServiceValidatesReferences(t *testing.T) {
	svc, repo, _ := newCatalogFixture(t)
	ctx := context.Background()

	_, err := svc.CreateService(ctx, "A2025001", ServiceInput{Name: "", BaseCharge: 10, MaxUnits: 1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}

	_, err = svc.CreateService(ctx, "A2025001", ServiceInput{
		Name: "Transcript", BaseCharge: 10, MaxUnits: 1, IsActive: true,
		AllowedParameters: []uuid.UUID{uuid.New()},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown parameter, got %v", err)
	}

	_, err = svc.CreateService(ctx, "A2025001", ServiceInput{
		Name: "Transcript", BaseCharge: 10, MaxUnits: 1, IsActive: true,
		PaymentModes: []string{"cheque"},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown payment mode, got %v", err)
	}

	param, err := svc.CreateParameter(ctx, "A2025001", ParameterInput{Name: "Seal", BaseCharge: 5, IsActive: true})
	if err != nil {
		t.Fatalf("create parameter: %v", err)
	}

	created, err := svc.CreateService(ctx, "A2025001", ServiceInput{
		Name: "Transcript", BaseCharge: 10, MaxUnits: 3, IsActive: true,
		PaymentModes:      []string{"offline", "online"},
		AllowedParameters: []uuid.UUID{param.ID, param.ID},
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	if len(created.AllowedParameters) != 1 {
		t.Fatalf("duplicate parameter reference not collapsed: %d", len(created.AllowedParameters))
	}
	if _, ok := repo.services[created.ID]; !ok {
		t.Fatal("service not persisted")
	}
}

func TestCreateSpecialServiceRequiresAllowList(t *testing.T) {
	svc, _, _ := newCatalogFixture(t)

	_, err := svc.CreateService(context.Background(), "A2025001", ServiceInput{
		Name: "Convocation Gown", BaseCharge: 10, MaxUnits: 1, IsActive: true, IsSpecial: true,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteServiceTriggersEviction(t *testing.T) {
	svc, _, invalidator := newCatalogFixture(t)
	ctx := context.Background()

	created, err := svc.CreateService(ctx, "A2025001", ServiceInput{Name: "Transcript", BaseCharge: 10, MaxUnits: 1, IsActive: true})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	if err := svc.DeleteService(ctx, created.ID); err != nil {
		t.Fatalf("delete service: %v", err)
	}
	if len(invalidator.evictedServices) != 1 || invalidator.evictedServices[0] != created.ID {
		t.Fatal("live orders not evicted")
	}

	err = svc.DeleteService(ctx, created.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found on repeat delete, got %v", err)
	}
}

func TestDeleteParameterScrubsServiceAllowLists(t *testing.T) {
	svc, repo, invalidator := newCatalogFixture(t)
	ctx := context.Background()

	param, err := svc.CreateParameter(ctx, "A2025001", ParameterInput{Name: "Seal", BaseCharge: 5, IsActive: true})
	if err != nil {
		t.Fatalf("create parameter: %v", err)
	}
	keep := uuid.New()
	repo.parameters[keep] = &models.Parameter{ID: keep, Name: "Apostille", BaseCharge: 25, IsActive: true}

	created, err := svc.CreateService(ctx, "A2025001", ServiceInput{
		Name: "Transcript", BaseCharge: 10, MaxUnits: 1, IsActive: true,
		AllowedParameters: []uuid.UUID{param.ID, keep},
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	if err := svc.DeleteParameter(ctx, param.ID); err != nil {
		t.Fatalf("delete parameter: %v", err)
	}

	stored := repo.services[created.ID]
	if stored.AllowedParameters.Contains(param.ID) {
		t.Fatal("deleted parameter still referenced by service")
	}
	if !stored.AllowedParameters.Contains(keep) {
		t.Fatal("unrelated parameter reference was scrubbed")
	}
	if len(invalidator.evictedParameters) != 1 || invalidator.evictedParameters[0] != param.ID {
		t.Fatal("live orders referencing the parameter not evicted")
	}
}

func TestDeleteCollectionTypeScrubsAndInvalidates(t *testing.T) {
	svc, repo, invalidator := newCatalogFixture(t)
	ctx := context.Background()

	ct, err := svc.CreateCollectionType(ctx, "A2025001", CollectionTypeInput{
		Name: "Courier", Category: enums.CollectionCategoryDelivery, BaseCharge: 20, IsActive: true,
	})
	if err != nil {
		t.Fatalf("create collection type: %v", err)
	}
	created, err := svc.CreateService(ctx, "A2025001", ServiceInput{
		Name: "Transcript", BaseCharge: 10, MaxUnits: 1, IsActive: true,
		AllowedCollectionTypes: []uuid.UUID{ct.ID},
	})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	if err := svc.DeleteCollectionType(ctx, ct.ID); err != nil {
		t.Fatalf("delete collection type: %v", err)
	}
	if repo.services[created.ID].AllowedCollectionTypes.Contains(ct.ID) {
		t.Fatal("deleted collection type still referenced by service")
	}
	if len(invalidator.invalidatedCTs) != 1 || invalidator.invalidatedCTs[0] != ct.ID {
		t.Fatal("live carts not invalidated")
	}
}

func TestListServicesActiveOnly(t *testing.T) {
	svc, _, _ := newCatalogFixture(t)
	ctx := context.Background()

	if _, err := svc.CreateService(ctx, "A2025001", ServiceInput{Name: "Active", BaseCharge: 10, MaxUnits: 1, IsActive: true}); err != nil {
		t.Fatalf("create active: %v", err)
	}
	if _, err := svc.CreateService(ctx, "A2025001", ServiceInput{Name: "Retired", BaseCharge: 10, MaxUnits: 1, IsActive: false}); err != nil {
		t.Fatalf("create inactive: %v", err)
	}

	active, err := svc.ListServices(ctx, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Name != "Active" {
		t.Fatalf("active-only listing wrong: %d", len(active))
	}

	all, err := svc.ListServices(ctx, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("full listing wrong: %d", len(all))
	}
}

func TestUpdateCollectionTypeUnknownCategory(t *testing.T) {
	svc, _, _ := newCatalogFixture(t)

	_, err := svc.CreateCollectionType(context.Background(), "A2025001", CollectionTypeInput{
		Name: "Drone Drop", Category: enums.CollectionCategory("airlift"), BaseCharge: 50, IsActive: true,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
