package fulfillment

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
	"github.com/campusdesk/campusdesk-backend/pkg/pagination"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// memRepo emulates the placed-snapshot store, including the conditional
// status updates the cascades rely on.
type memRepo struct {
	carts  map[uuid.UUID]*models.PlacedCart
	orders map[uuid.UUID]*models.PlacedOrder
}

func newMemRepo() *memRepo {
	return &memRepo{
		carts:  map[uuid.UUID]*models.PlacedCart{},
		orders: map[uuid.UUID]*models.PlacedOrder{},
	}
}

func (m *memRepo) WithTx(tx *gorm.DB) PlacedRepository { return m }

func (m *memRepo) FindCart(ctx context.Context, id uuid.UUID) (*models.PlacedCart, error) {
	stored, ok := m.carts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cart := *stored
	cart.Orders = nil
	for _, order := range m.orders {
		if order.PlacedCartID == id {
			cart.Orders = append(cart.Orders, *order)
		}
	}
	return &cart, nil
}

func (m *memRepo) ListCartsByUser(ctx context.Context, userID uuid.UUID) ([]models.PlacedCart, error) {
	var out []models.PlacedCart
	for _, cart := range m.carts {
		if cart.RequestedBy == userID {
			out = append(out, *cart)
		}
	}
	return out, nil
}

func (m *memRepo) ListCarts(ctx context.Context, query ListCartsQuery) ([]models.PlacedCart, *pagination.Cursor, error) {
	var out []models.PlacedCart
	for _, cart := range m.carts {
		out = append(out, *cart)
	}
	return out, nil, nil
}

func (m *memRepo) ListAwaitingPayment(ctx context.Context) ([]models.PlacedCart, error) {
	var out []models.PlacedCart
	for _, cart := range m.carts {
		if cart.Status == enums.CartStatusPlaced && !cart.PaymentStatus {
			out = append(out, *cart)
		}
	}
	return out, nil
}

func (m *memRepo) SaveCart(ctx context.Context, cart *models.PlacedCart) error {
	stored := *cart
	stored.Orders = nil
	m.carts[cart.ID] = &stored
	return nil
}

func (m *memRepo) UpdateCartStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.CartStatus) (bool, error) {
	stored, ok := m.carts[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	return true, nil
}

func (m *memRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.PlacedOrder, error) {
	stored, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	order := *stored
	return &order, nil
}

func (m *memRepo) ListOrdersByCart(ctx context.Context, placedCartID uuid.UUID) ([]models.PlacedOrder, error) {
	var out []models.PlacedOrder
	for _, order := range m.orders {
		if order.PlacedCartID == placedCartID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *memRepo) SaveOrder(ctx context.Context, order *models.PlacedOrder) error {
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m *memRepo) UpdateOrderStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	stored, ok := m.orders[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	return true, nil
}

type stubUsers struct {
	user *models.User
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.user, nil
}

type stubNotifier struct {
	inputs []notifications.EnqueueInput
}

func (s *stubNotifier) EnqueueTx(ctx context.Context, tx *gorm.DB, input notifications.EnqueueInput) error {
	s.inputs = append(s.inputs, input)
	return nil
}

type stubEvents struct {
	events []outbox.DomainEvent
}

func (s *stubEvents) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fixture struct {
	svc    Service
	repo   *memRepo
	notify *stubNotifier
	events *stubEvents
	userID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   newMemRepo(),
		notify: &stubNotifier{},
		events: &stubEvents{},
		userID: uuid.New(),
	}
	users := &stubUsers{user: &models.User{ID: f.userID, MemberID: "S2025001", Email: "s2025001@example.edu"}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(f.repo, users, f.notify, f.events, stubTx{}, logg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedCart(t *testing.T, status enums.CartStatus, category enums.CollectionCategory, orderStatuses ...enums.OrderStatus) (*models.PlacedCart, []uuid.UUID) {
	t.Helper()
	cart := &models.PlacedCart{
		ID:                 uuid.New(),
		SourceCartID:       uuid.New(),
		OrderCode:          "CD-20250901-SEEDAA",
		RequestedBy:        f.userID,
		Status:             status,
		CollectionCategory: &category,
		PaymentType:        enums.PaymentTypeOffline,
		StatusTimeline:     types.StatusTimeline{},
	}
	if category == enums.CollectionCategoryDelivery {
		cart.Delivery = &types.DeliverySnapshot{
			Name:   "A Student",
			City:   "Pune",
			Status: string(enums.CollectionStatusPending),
		}
	} else {
		cart.Pickup = &types.PickupSnapshot{
			Location: "Records Office",
			Status:   string(enums.CollectionStatusPending),
		}
	}
	if err := f.repo.SaveCart(context.Background(), cart); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	var orderIDs []uuid.UUID
	for _, orderStatus := range orderStatuses {
		order := &models.PlacedOrder{
			ID:             uuid.New(),
			PlacedCartID:   cart.ID,
			SourceOrderID:  uuid.New(),
			RequestedBy:    f.userID,
			ServiceID:      uuid.New(),
			ServiceName:    "Official Transcript",
			UnitsRequested: 1,
			Status:         orderStatus,
			StatusTimeline: types.StatusTimeline{},
		}
		if err := f.repo.SaveOrder(context.Background(), order); err != nil {
			t.Fatalf("seed order: %v", err)
		}
		orderIDs = append(orderIDs, order.ID)
	}
	return cart, orderIDs
}

func TestMarkPaidCascades(t *testing.T) {
	f := newFixture(t)
	cart, orderIDs := f.seedCart(t, enums.CartStatusPlaced, enums.CollectionCategoryDelivery,
		enums.OrderStatusPlaced, enums.OrderStatusPlaced)

	out, err := f.svc.MarkPaid(context.Background(), cart.ID, "A2025001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != enums.CartStatusProcessing {
		t.Fatalf("expected processing, got %s", out.Status)
	}
	if !out.PaymentStatus {
		t.Fatal("payment status not confirmed")
	}
	if out.Delivery.Status != string(enums.CollectionStatusProcessing) {
		t.Fatalf("delivery sub-resource not cascaded: %s", out.Delivery.Status)
	}
	for _, id := range orderIDs {
		order, _ := f.repo.FindOrder(context.Background(), id)
		if order.Status != enums.OrderStatusProcessing {
			t.Fatalf("order not cascaded: %s", order.Status)
		}
	}
	if len(f.notify.inputs) != 1 || len(f.events.events) != 1 {
		t.Fatalf("expected one notification and one event, got %d/%d", len(f.notify.inputs), len(f.events.events))
	}
	if f.events.events[0].EventType != enums.EventCartProcessing {
		t.Fatalf("unexpected event %s", f.events.events[0].EventType)
	}
}

func TestMarkPaidTwiceRejectsSecond(t *testing.T) {
	f := newFixture(t)
	cart, _ := f.seedCart(t, enums.CartStatusPlaced, enums.CollectionCategoryPickup, enums.OrderStatusPlaced)

	if _, err := f.svc.MarkPaid(context.Background(), cart.ID, "A2025001"); err != nil {
		t.Fatalf("first confirmation: %v", err)
	}
	_, err := f.svc.MarkPaid(context.Background(), cart.ID, "A2025001")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on duplicate confirmation, got %v", err)
	}
	if len(f.notify.inputs) != 1 {
		t.Fatal("duplicate confirmation produced duplicate side effects")
	}
}

func TestAggregateReadyGuardFiresExactlyOnce(t *testing.T) {
	f := newFixture(t)
	cart, orderIDs := f.seedCart(t, enums.CartStatusProcessing, enums.CollectionCategoryPickup,
		enums.OrderStatusProcessing, enums.OrderStatusProcessing)

	if _, err := f.svc.TransitionOrder(context.Background(), orderIDs[0], enums.OrderStatusReady, nil, "A2025001"); err != nil {
		t.Fatalf("first order: %v", err)
	}
	stored, _ := f.repo.FindCart(context.Background(), cart.ID)
	if stored.Status != enums.CartStatusProcessing {
		t.Fatalf("guard fired with an order still processing: %s", stored.Status)
	}

	if _, err := f.svc.TransitionOrder(context.Background(), orderIDs[1], enums.OrderStatusReady, nil, "A2025001"); err != nil {
		t.Fatalf("last order: %v", err)
	}
	stored, _ = f.repo.FindCart(context.Background(), cart.ID)
	if stored.Status != enums.CartStatusReadyToPickup {
		t.Fatalf("expected readyToPickup, got %s", stored.Status)
	}

	ready := 0
	for _, event := range f.events.events {
		if event.EventType == enums.EventCartReady {
			ready++
		}
	}
	if ready != 1 {
		t.Fatalf("ready event fired %d times", ready)
	}
}

func TestAggregateGuardSkipsCancelledOrders(t *testing.T) {
	f := newFixture(t)
	cart, orderIDs := f.seedCart(t, enums.CartStatusProcessing, enums.CollectionCategoryDelivery,
		enums.OrderStatusProcessing, enums.OrderStatusProcessing)

	reason := "duplicate request"
	if _, err := f.svc.TransitionOrder(context.Background(), orderIDs[0], enums.OrderStatusCancelled, &reason, "A2025001"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.TransitionOrder(context.Background(), orderIDs[1], enums.OrderStatusReady, nil, "A2025001"); err != nil {
		t.Fatalf("ready: %v", err)
	}

	stored, _ := f.repo.FindCart(context.Background(), cart.ID)
	if stored.Status != enums.CartStatusReadyToDeliver {
		t.Fatalf("expected readyToDeliver with one cancelled order, got %s", stored.Status)
	}
}

func TestAllOrdersCancelledCancelsCart(t *testing.T) {
	f := newFixture(t)
	cart, orderIDs := f.seedCart(t, enums.CartStatusProcessing, enums.CollectionCategoryPickup,
		enums.OrderStatusProcessing)

	reason := "requested by student"
	if _, err := f.svc.TransitionOrder(context.Background(), orderIDs[0], enums.OrderStatusCancelled, &reason, "A2025001"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, _ := f.repo.FindCart(context.Background(), cart.ID)
	if stored.Status != enums.CartStatusCancelled {
		t.Fatalf("expected cancelled cart, got %s", stored.Status)
	}
	if stored.CancelReason == nil {
		t.Fatal("cancel reason not recorded")
	}
}

func TestCompleteDeliveryRequiresCourierInfo(t *testing.T) {
	f := newFixture(t)
	cart, _ := f.seedCart(t, enums.CartStatusReadyToDeliver, enums.CollectionCategoryDelivery,
		enums.OrderStatusReady)

	_, err := f.svc.TransitionCart(context.Background(), cart.ID, TransitionCartInput{To: enums.CartStatusCompleted}, "A2025001")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if typed := pkgerrors.As(err); typed.Message() != "courier information required" {
		t.Fatalf("unexpected message %q", typed.Message())
	}

	courier := "BlueDart"
	tracking := "BD-998877"
	out, err := f.svc.TransitionCart(context.Background(), cart.ID, TransitionCartInput{
		To:          enums.CartStatusCompleted,
		CourierName: &courier,
		TrackingID:  &tracking,
	}, "A2025001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Delivery.CourierName == nil || *out.Delivery.CourierName != courier {
		t.Fatal("courier name not frozen on delivery snapshot")
	}
	if out.Delivery.Status != string(enums.CollectionStatusCompleted) {
		t.Fatalf("delivery sub-resource not completed: %s", out.Delivery.Status)
	}
	for i := range out.Orders {
		if out.Orders[i].Status != enums.OrderStatusCompleted {
			t.Fatalf("order not completed: %s", out.Orders[i].Status)
		}
	}
}

func TestCompletePickupNeedsNoCourier(t *testing.T) {
	f := newFixture(t)
	cart, _ := f.seedCart(t, enums.CartStatusReadyToPickup, enums.CollectionCategoryPickup,
		enums.OrderStatusReady)

	out, err := f.svc.TransitionCart(context.Background(), cart.ID, TransitionCartInput{To: enums.CartStatusCompleted}, "A2025001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Pickup.Status != string(enums.CollectionStatusCompleted) {
		t.Fatalf("pickup sub-resource not completed: %s", out.Pickup.Status)
	}
}

func TestCancelCartRequiresReason(t *testing.T) {
	f := newFixture(t)
	cart, _ := f.seedCart(t, enums.CartStatusProcessing, enums.CollectionCategoryPickup,
		enums.OrderStatusProcessing)

	_, err := f.svc.TransitionCart(context.Background(), cart.ID, TransitionCartInput{To: enums.CartStatusCancelled}, "A2025001")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	reason := "payment reversed by the bank"
	out, err := f.svc.TransitionCart(context.Background(), cart.ID, TransitionCartInput{
		To:     enums.CartStatusCancelled,
		Reason: &reason,
	}, "A2025001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range out.Orders {
		if out.Orders[i].Status != enums.OrderStatusCancelled {
			t.Fatalf("order not cancelled: %s", out.Orders[i].Status)
		}
	}
}

func TestTransitionOrderRejectsWhenCartNotProcessing(t *testing.T) {
	f := newFixture(t)
	_, orderIDs := f.seedCart(t, enums.CartStatusPlaced, enums.CollectionCategoryPickup,
		enums.OrderStatusPlaced)

	_, err := f.svc.TransitionOrder(context.Background(), orderIDs[0], enums.OrderStatusReady, nil, "A2025001")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestResumeOrderOwnership(t *testing.T) {
	f := newFixture(t)
	_, orderIDs := f.seedCart(t, enums.CartStatusProcessing, enums.CollectionCategoryPickup,
		enums.OrderStatusOnHold)

	if _, err := f.svc.ResumeOrder(context.Background(), uuid.New(), orderIDs[0], "S9999999"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign order, got %v", err)
	}

	out, err := f.svc.ResumeOrder(context.Background(), f.userID, orderIDs[0], "S2025001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", out.Status)
	}
	if out.HoldReason != nil {
		t.Fatal("hold reason not cleared on resume")
	}
}
