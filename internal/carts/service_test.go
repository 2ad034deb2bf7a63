package carts

import (
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	dbtypes "github.com/campusdesk/campusdesk-backend/pkg/db/types"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

// memCartRepo emulates the live-cart store, including the CAS swap the
// invalidation cascade relies on.
type memCartRepo struct {
	carts      map[uuid.UUID]*models.Cart
	orders     map[uuid.UUID]*models.Order
	deliveries map[uuid.UUID]*models.Delivery
	pickups    map[uuid.UUID]*models.Pickup
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{
		carts:      map[uuid.UUID]*models.Cart{},
		orders:     map[uuid.UUID]*models.Order{},
		deliveries: map[uuid.UUID]*models.Delivery{},
		pickups:    map[uuid.UUID]*models.Pickup{},
	}
}

func (m *memCartRepo) WithTx(tx *gorm.DB) CartRepository { return m }

func (m *memCartRepo) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = time.Now().UTC()
	}
	stored := *cart
	stored.Orders = nil
	stored.Delivery = nil
	stored.Pickup = nil
	m.carts[cart.ID] = &stored
	return cart, nil
}

func (m *memCartRepo) Save(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	stored := *cart
	stored.Orders = nil
	stored.Delivery = nil
	stored.Pickup = nil
	m.carts[cart.ID] = &stored
	return cart, nil
}

func (m *memCartRepo) hydrate(stored *models.Cart) *models.Cart {
	cart := *stored
	for _, order := range m.orders {
		if order.CartID == cart.ID {
			cart.Orders = append(cart.Orders, *order)
		}
	}
	sort.Slice(cart.Orders, func(i, j int) bool {
		return cart.Orders[i].CreatedAt.Before(cart.Orders[j].CreatedAt)
	})
	if d, ok := m.deliveries[cart.ID]; ok {
		copied := *d
		cart.Delivery = &copied
	}
	if p, ok := m.pickups[cart.ID]; ok {
		copied := *p
		cart.Pickup = &copied
	}
	return &cart
}

func (m *memCartRepo) FindLiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	for _, stored := range m.carts {
		if stored.RequestedBy == userID && stored.Status < enums.CartStatusPlaced {
			return m.hydrate(stored), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memCartRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	stored, ok := m.carts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.hydrate(stored), nil
}

func (m *memCartRepo) FindByPaymentCode(ctx context.Context, code string) (*models.Cart, error) {
	for _, stored := range m.carts {
		if stored.PaymentCode != nil && *stored.PaymentCode == code {
			return m.hydrate(stored), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memCartRepo) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.CartStatus, updates map[string]any) (bool, error) {
	stored, ok := m.carts[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	return true, nil
}

func (m *memCartRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.carts, id)
	delete(m.deliveries, id)
	delete(m.pickups, id)
	for orderID, order := range m.orders {
		if order.CartID == id {
			delete(m.orders, orderID)
		}
	}
	return nil
}

func (m *memCartRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	stored := *order
	m.orders[order.ID] = &stored
	return order, nil
}

func (m *memCartRepo) SaveOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	stored := *order
	m.orders[order.ID] = &stored
	return order, nil
}

func (m *memCartRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	stored, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	order := *stored
	return &order, nil
}

func (m *memCartRepo) DeleteOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := m.orders[id]; !ok {
		return false, nil
	}
	delete(m.orders, id)
	return true, nil
}

func (m *memCartRepo) ListLiveOrdersByService(ctx context.Context, serviceID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		if order.ServiceID == serviceID && order.Status < enums.OrderStatusPlaced {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *memCartRepo) ListLiveOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		if order.Status < enums.OrderStatusPlaced {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *memCartRepo) ListLiveCartsByCollectionType(ctx context.Context, collectionTypeID uuid.UUID) ([]models.Cart, error) {
	var out []models.Cart
	for _, cart := range m.carts {
		if cart.CollectionTypeID != nil && *cart.CollectionTypeID == collectionTypeID && cart.Status < enums.CartStatusPlaced {
			out = append(out, *cart)
		}
	}
	return out, nil
}

func (m *memCartRepo) ListStuckCarts(ctx context.Context, statuses []enums.CartStatus) ([]models.Cart, error) {
	var out []models.Cart
	for _, cart := range m.carts {
		for _, status := range statuses {
			if cart.Status == status {
				out = append(out, *cart)
				break
			}
		}
	}
	return out, nil
}

func (m *memCartRepo) UpsertDelivery(ctx context.Context, cartID uuid.UUID, delivery *models.Delivery) error {
	delete(m.pickups, cartID)
	delivery.CartID = cartID
	stored := *delivery
	m.deliveries[cartID] = &stored
	return nil
}

func (m *memCartRepo) UpsertPickup(ctx context.Context, cartID uuid.UUID, pickup *models.Pickup) error {
	delete(m.deliveries, cartID)
	pickup.CartID = cartID
	stored := *pickup
	m.pickups[cartID] = &stored
	return nil
}

type stubCatalog struct {
	services        map[uuid.UUID]*models.Service
	parameters      map[uuid.UUID]models.Parameter
	collectionTypes map[uuid.UUID]*models.CollectionType
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		services:        map[uuid.UUID]*models.Service{},
		parameters:      map[uuid.UUID]models.Parameter{},
		collectionTypes: map[uuid.UUID]*models.CollectionType{},
	}
}

func (s *stubCatalog) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *svc
	return &copied, nil
}

func (s *stubCatalog) GetServices(ctx context.Context, ids []uuid.UUID) ([]models.Service, error) {
	var out []models.Service
	for _, id := range ids {
		if svc, ok := s.services[id]; ok {
			out = append(out, *svc)
		}
	}
	return out, nil
}

func (s *stubCatalog) GetParameters(ctx context.Context, ids []uuid.UUID) ([]models.Parameter, error) {
	var out []models.Parameter
	for _, id := range ids {
		if p, ok := s.parameters[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubCatalog) GetCollectionType(ctx context.Context, id uuid.UUID) (*models.CollectionType, error) {
	ct, ok := s.collectionTypes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *ct
	return &copied, nil
}

type stubUserReader struct {
	user *models.User
}

func (s *stubUserReader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.user
	return &copied, nil
}

type recordingNotifier struct {
	inputs []notifications.EnqueueInput
}

func (r *recordingNotifier) Enqueue(ctx context.Context, input notifications.EnqueueInput) error {
	r.inputs = append(r.inputs, input)
	return nil
}

func (r *recordingNotifier) EnqueueTx(ctx context.Context, tx *gorm.DB, input notifications.EnqueueInput) error {
	r.inputs = append(r.inputs, input)
	return nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type cartFixture struct {
	svc     Service
	repo    *memCartRepo
	catalog *stubCatalog
	notify  *recordingNotifier
	userID  uuid.UUID
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	f := &cartFixture{
		repo:    newMemCartRepo(),
		catalog: newStubCatalog(),
		notify:  &recordingNotifier{},
		userID:  uuid.New(),
	}
	users := &stubUserReader{user: &models.User{
		ID:         f.userID,
		MemberID:   "S2025001",
		Name:       "A Student",
		Email:      "s2025001@example.edu",
		Programme:  "BSc",
		Batch:      "2025",
		UserType:   "student",
		UserStatus: "active",
	}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(f.repo, f.catalog, users, f.notify, passTx{}, logg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *cartFixture) seedLiveCart(t *testing.T, status enums.CartStatus) *models.Cart {
	t.Helper()
	cart := &models.Cart{
		ID:          uuid.New(),
		OrderCode:   "CD-20250901-TESTAA",
		RequestedBy: f.userID,
		Status:      status,
	}
	if _, err := f.repo.Create(context.Background(), cart); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return cart
}

func (f *cartFixture) seedService(charge, maxUnits int, params ...uuid.UUID) *models.Service {
	svc := &models.Service{
		ID:                uuid.New(),
		Name:              "Official Transcript",
		BaseCharge:        charge,
		MaxUnits:          maxUnits,
		IsActive:          true,
		AllowedParameters: dbtypes.UUIDArray(params),
	}
	f.catalog.services[svc.ID] = svc
	return svc
}

func TestAddOrderPricesAndRecomputes(t *testing.T) {
	f := newCartFixture(t)
	f.seedLiveCart(t, enums.CartStatusUnplaced)

	param := models.Parameter{ID: uuid.New(), Name: "Notarized Copy", BaseCharge: 15, IsActive: true}
	f.catalog.parameters[param.ID] = param
	svc := f.seedService(50, 5, param.ID)

	view, err := f.svc.AddOrder(context.Background(), f.userID, AddOrderInput{
		ServiceID:    svc.ID,
		Units:        2,
		ParameterIDs: []uuid.UUID{param.ID},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Cart.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(view.Cart.Orders))
	}
	order := view.Cart.Orders[0]
	if order.ServiceCost != 100 || order.ParameterCost != 30 || order.TotalCost != 130 {
		t.Fatalf("unexpected pricing: %d/%d/%d", order.ServiceCost, order.ParameterCost, order.TotalCost)
	}
	if view.Cart.OrdersCost != 130 || view.Cart.TotalCost != 130 {
		t.Fatalf("cart totals not recomputed: %d/%d", view.Cart.OrdersCost, view.Cart.TotalCost)
	}
	if len(view.ValidityErrors) != 0 {
		t.Fatalf("unexpected validity errors: %v", view.ValidityErrors)
	}
}

func TestAddOrderRejectedWhilePaymentInFlight(t *testing.T) {
	f := newCartFixture(t)
	f.seedLiveCart(t, enums.CartStatusProcessingPayment)
	svc := f.seedService(50, 5)

	_, err := f.svc.AddOrder(context.Background(), f.userID, AddOrderInput{ServiceID: svc.ID, Units: 1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAddOrderRejectsUnitsOverLimit(t *testing.T) {
	f := newCartFixture(t)
	f.seedLiveCart(t, enums.CartStatusUnplaced)
	svc := f.seedService(50, 2)

	_, err := f.svc.AddOrder(context.Background(), f.userID, AddOrderInput{ServiceID: svc.ID, Units: 3})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidPricing) {
		t.Fatalf("expected pricing rejection, got %v", err)
	}
}

func TestGetCartEvictsStaleOrderOnce(t *testing.T) {
	f := newCartFixture(t)
	f.seedLiveCart(t, enums.CartStatusUnplaced)
	svc := f.seedService(50, 5)

	if _, err := f.svc.AddOrder(context.Background(), f.userID, AddOrderInput{ServiceID: svc.ID, Units: 1}); err != nil {
		t.Fatalf("add order: %v", err)
	}

	// the service disappears from the catalog between reads
	delete(f.catalog.services, svc.ID)

	view, err := f.svc.GetCart(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Cart.Orders) != 0 {
		t.Fatalf("stale order not evicted")
	}
	if view.Cart.TotalCost != 0 {
		t.Fatalf("cart total not reset: %d", view.Cart.TotalCost)
	}
	if len(f.notify.inputs) != 1 {
		t.Fatalf("expected one eviction notice, got %d", len(f.notify.inputs))
	}
	if !f.notify.inputs[0].DedupeOnCart {
		t.Fatal("eviction notice must dedupe on cart")
	}

	// a second pass over the same state evicts nothing new
	if _, err := f.svc.GetCart(context.Background(), f.userID); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(f.notify.inputs) != 1 {
		t.Fatalf("revalidation is not idempotent: %d notices", len(f.notify.inputs))
	}
}

func TestRemoveOrderOwnershipEnforced(t *testing.T) {
	f := newCartFixture(t)
	f.seedLiveCart(t, enums.CartStatusUnplaced)
	svc := f.seedService(50, 5)

	view, err := f.svc.AddOrder(context.Background(), f.userID, AddOrderInput{ServiceID: svc.ID, Units: 1})
	if err != nil {
		t.Fatalf("add order: %v", err)
	}
	orderID := view.Cart.Orders[0].ID

	// hand the stored order to a different cart
	stored := f.repo.orders[orderID]
	stored.CartID = uuid.New()

	_, err = f.svc.RemoveOrder(context.Background(), f.userID, orderID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSetCollectionRequiresMatchingSubResource(t *testing.T) {
	f := newCartFixture(t)
	f.seedLiveCart(t, enums.CartStatusUnplaced)

	ct := &models.CollectionType{ID: uuid.New(), Name: "Courier", Category: enums.CollectionCategoryDelivery, BaseCharge: 20, IsActive: true}
	f.catalog.collectionTypes[ct.ID] = ct

	_, err := f.svc.SetCollection(context.Background(), f.userID, SetCollectionInput{CollectionTypeID: ct.ID})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without delivery details, got %v", err)
	}

	view, err := f.svc.SetCollection(context.Background(), f.userID, SetCollectionInput{
		CollectionTypeID: ct.ID,
		Delivery: &DeliveryInput{
			Name:          "A Student",
			AddressLine1:  "12 College Road",
			City:          "Pune",
			State:         "MH",
			PinCode:       "411001",
			ContactNumber: "9876543210",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Cart.Delivery == nil || view.Cart.Pickup != nil {
		t.Fatal("delivery sub-resource not attached")
	}
	if view.Cart.CollectionTypeID == nil || *view.Cart.CollectionTypeID != ct.ID {
		t.Fatal("collection type not recorded")
	}
}

func TestSetCollectionSwapsDeliveryForPickup(t *testing.T) {
	f := newCartFixture(t)
	f.seedLiveCart(t, enums.CartStatusUnplaced)

	courier := &models.CollectionType{ID: uuid.New(), Name: "Courier", Category: enums.CollectionCategoryDelivery, BaseCharge: 20, IsActive: true}
	counter := &models.CollectionType{ID: uuid.New(), Name: "Counter", Category: enums.CollectionCategoryPickup, BaseCharge: 0, IsActive: true}
	f.catalog.collectionTypes[courier.ID] = courier
	f.catalog.collectionTypes[counter.ID] = counter

	if _, err := f.svc.SetCollection(context.Background(), f.userID, SetCollectionInput{
		CollectionTypeID: courier.ID,
		Delivery: &DeliveryInput{
			Name: "A Student", AddressLine1: "12 College Road", City: "Pune",
			State: "MH", PinCode: "411001", ContactNumber: "9876543210",
		},
	}); err != nil {
		t.Fatalf("set delivery: %v", err)
	}

	view, err := f.svc.SetCollection(context.Background(), f.userID, SetCollectionInput{
		CollectionTypeID: counter.ID,
		Pickup:           &PickupInput{Location: "Records Office Counter 2", ContactNumber: "9876543210"},
	})
	if err != nil {
		t.Fatalf("set pickup: %v", err)
	}
	if view.Cart.Pickup == nil || view.Cart.Delivery != nil {
		t.Fatal("pickup did not replace delivery")
	}
}

func TestValidateForPaymentGuards(t *testing.T) {
	f := newCartFixture(t)
	f.seedLiveCart(t, enums.CartStatusUnplaced)

	_, err := f.svc.ValidateForPayment(context.Background(), f.userID, enums.PaymentTypeOffline)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected empty-cart rejection, got %v", err)
	}

	ct := &models.CollectionType{ID: uuid.New(), Name: "Counter", Category: enums.CollectionCategoryPickup, BaseCharge: 10, IsActive: true}
	f.catalog.collectionTypes[ct.ID] = ct

	svc := f.seedService(50, 5)
	svc.PaymentModes = []string{"online"}
	svc.AllowedCollectionTypes = dbtypes.UUIDArray{ct.ID}

	if _, err := f.svc.AddOrder(context.Background(), f.userID, AddOrderInput{ServiceID: svc.ID, Units: 1}); err != nil {
		t.Fatalf("add order: %v", err)
	}
	if _, err := f.svc.SetCollection(context.Background(), f.userID, SetCollectionInput{
		CollectionTypeID: ct.ID,
		Pickup:           &PickupInput{Location: "Records Office", ContactNumber: "9876543210"},
	}); err != nil {
		t.Fatalf("set collection: %v", err)
	}

	_, err = f.svc.ValidateForPayment(context.Background(), f.userID, enums.PaymentTypeOffline)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected payment mode rejection, got %v", err)
	}

	cart, err := f.svc.ValidateForPayment(context.Background(), f.userID, enums.PaymentTypeOnline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.TotalCost != 60 {
		t.Fatalf("unexpected total: %d", cart.TotalCost)
	}
}

func TestInvalidateCartsReferencingCollectionType(t *testing.T) {
	f := newCartFixture(t)
	cart := f.seedLiveCart(t, enums.CartStatusUnplaced)

	ct := &models.CollectionType{ID: uuid.New(), Name: "Courier", Category: enums.CollectionCategoryDelivery, BaseCharge: 20, IsActive: true}
	f.catalog.collectionTypes[ct.ID] = ct
	stored := f.repo.carts[cart.ID]
	stored.CollectionTypeID = &ct.ID

	if err := f.svc.InvalidateCartsReferencingCollectionType(context.Background(), ct.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.repo.carts[cart.ID]; ok {
		t.Fatal("invalidated cart still present")
	}

	fresh, err := f.repo.FindLiveByUser(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("no replacement cart: %v", err)
	}
	if fresh.ID == cart.ID || fresh.Status != enums.CartStatusUnplaced {
		t.Fatal("replacement cart not allocated")
	}
	if len(f.notify.inputs) != 1 {
		t.Fatalf("expected one invalidation notice, got %d", len(f.notify.inputs))
	}
}
