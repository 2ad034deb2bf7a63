package carts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	dbtypes "github.com/campusdesk/campusdesk-backend/pkg/db/types"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

func setupCartsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	carts := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  order_code TEXT NOT NULL,
  requested_by TEXT NOT NULL,
  status INTEGER NOT NULL DEFAULT 20,
  collection_type_id TEXT,
  collection_category TEXT,
  collection_type_cost INTEGER NOT NULL DEFAULT 0,
  orders_cost INTEGER NOT NULL DEFAULT 0,
  total_cost INTEGER NOT NULL DEFAULT 0,
  payment_type TEXT,
  payment_id TEXT,
  payment_code TEXT,
  payment_status INTEGER NOT NULL DEFAULT 0,
  payment_fail_history TEXT,
  status_timeline TEXT,
  cancel_reason TEXT,
  comments TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  requested_by TEXT NOT NULL,
  service_id TEXT NOT NULL,
  service_name TEXT NOT NULL,
  units_requested INTEGER NOT NULL,
  parameter_ids TEXT,
  service_cost INTEGER NOT NULL DEFAULT 0,
  parameter_cost INTEGER NOT NULL DEFAULT 0,
  total_cost INTEGER NOT NULL DEFAULT 0,
  status INTEGER NOT NULL DEFAULT 20,
  status_timeline TEXT,
  comment TEXT,
  cancel_reason TEXT,
  hold_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	deliveries := `
CREATE TABLE IF NOT EXISTS deliveries (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  name TEXT NOT NULL,
  address_line1 TEXT NOT NULL,
  address_line2 TEXT,
  city TEXT NOT NULL,
  state TEXT NOT NULL,
  pin_code TEXT NOT NULL,
  contact_number TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  courier_name TEXT,
  tracking_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	pickups := `
CREATE TABLE IF NOT EXISTS pickups (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  location TEXT NOT NULL,
  slot TEXT,
  contact_number TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(carts).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(deliveries).Error)
	require.NoError(t, db.Exec(pickups).Error)
	return db
}

func seedCart(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.CartStatus) *models.Cart {
	t.Helper()

	cart := &models.Cart{
		ID:          uuid.New(),
		OrderCode:   "CD-" + uuid.NewString()[:8],
		RequestedBy: userID,
		Status:      status,
	}
	require.NoError(t, db.Create(cart).Error)
	return cart
}

func seedOrder(t *testing.T, db *gorm.DB, cart *models.Cart, serviceID uuid.UUID, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:             uuid.New(),
		CartID:         cart.ID,
		RequestedBy:    cart.RequestedBy,
		ServiceID:      serviceID,
		ServiceName:    "Transcript Copy",
		UnitsRequested: 1,
		ParameterIDs:   dbtypes.UUIDArray{},
		ServiceCost:    50,
		TotalCost:      50,
		Status:         enums.OrderStatusUnplaced,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryFindLiveByUser(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	// an older placed cart must never surface as the live one
	seedCart(t, db, userID, enums.CartStatusPlaced)
	live := seedCart(t, db, userID, enums.CartStatusUnplaced)

	now := time.Now().UTC()
	first := seedOrder(t, db, live, uuid.New(), now.Add(-time.Minute))
	second := seedOrder(t, db, live, uuid.New(), now)

	found, err := repo.FindLiveByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, live.ID, found.ID)
	require.Len(t, found.Orders, 2)
	assert.Equal(t, first.ID, found.Orders[0].ID)
	assert.Equal(t, second.ID, found.Orders[1].ID)
}

func TestRepositoryFindLiveByUser_notFound(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	seedCart(t, db, userID, enums.CartStatusCompleted)

	_, err := repo.FindLiveByUser(context.Background(), userID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindByPaymentCode(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)

	cart := seedCart(t, db, uuid.New(), enums.CartStatusPlaced)
	code := "PAY-1234"
	require.NoError(t, db.Model(&models.Cart{}).Where("id = ?", cart.ID).Update("payment_code", code).Error)

	found, err := repo.FindByPaymentCode(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, found.ID)

	_, err = repo.FindByPaymentCode(context.Background(), "PAY-unknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateStatusCAS(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)

	cart := seedCart(t, db, uuid.New(), enums.CartStatusPlaced)

	moved, err := repo.UpdateStatusCAS(context.Background(), cart.ID, enums.CartStatusPlaced, enums.CartStatusPaymentComplete, map[string]any{
		"payment_status": true,
	})
	require.NoError(t, err)
	assert.True(t, moved)

	found, err := repo.FindByID(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusPaymentComplete, found.Status)
	assert.True(t, found.PaymentStatus)

	// the expected prior status is gone, so the swap must not apply
	moved, err = repo.UpdateStatusCAS(context.Background(), cart.ID, enums.CartStatusPlaced, enums.CartStatusProcessing, nil)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestRepositoryDelete_removesChildren(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)

	cart := seedCart(t, db, uuid.New(), enums.CartStatusUnplaced)
	seedOrder(t, db, cart, uuid.New(), time.Now().UTC())
	require.NoError(t, repo.UpsertDelivery(context.Background(), cart.ID, &models.Delivery{
		ID:            uuid.New(),
		Name:          "Asha Rao",
		AddressLine1:  "12 College Road",
		City:          "Pune",
		State:         "MH",
		PinCode:       "411001",
		ContactNumber: "9876543210",
		Status:        enums.CollectionStatusPending,
	}))

	require.NoError(t, repo.Delete(context.Background(), cart.ID))

	_, err := repo.FindByID(context.Background(), cart.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Where("cart_id = ?", cart.ID).Count(&orderCount).Error)
	assert.Zero(t, orderCount)

	var deliveryCount int64
	require.NoError(t, db.Model(&models.Delivery{}).Where("cart_id = ?", cart.ID).Count(&deliveryCount).Error)
	assert.Zero(t, deliveryCount)
}

func TestRepositoryUpsertCollection_swapsSubResource(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)

	cart := seedCart(t, db, uuid.New(), enums.CartStatusUnplaced)

	require.NoError(t, repo.UpsertDelivery(context.Background(), cart.ID, &models.Delivery{
		ID:            uuid.New(),
		Name:          "Asha Rao",
		AddressLine1:  "12 College Road",
		City:          "Pune",
		State:         "MH",
		PinCode:       "411001",
		ContactNumber: "9876543210",
		Status:        enums.CollectionStatusPending,
	}))

	require.NoError(t, repo.UpsertPickup(context.Background(), cart.ID, &models.Pickup{
		ID:            uuid.New(),
		Location:      "Records Office Counter 2",
		Slot:          "10:00-12:00",
		ContactNumber: "9876543210",
		Status:        enums.CollectionStatusPending,
	}))

	found, err := repo.FindByID(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Nil(t, found.Delivery)
	require.NotNil(t, found.Pickup)
	assert.Equal(t, "Records Office Counter 2", found.Pickup.Location)
}

func TestRepositoryListStuckCarts(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	older := seedCart(t, db, uuid.New(), enums.CartStatusPlaced)
	require.NoError(t, db.Model(&models.Cart{}).Where("id = ?", older.ID).Update("updated_at", now.Add(-48*time.Hour)).Error)
	newer := seedCart(t, db, uuid.New(), enums.CartStatusPaymentFailed)
	require.NoError(t, db.Model(&models.Cart{}).Where("id = ?", newer.ID).Update("updated_at", now.Add(-time.Hour)).Error)
	paid := seedCart(t, db, uuid.New(), enums.CartStatusPaymentComplete)

	rows, err := repo.ListStuckCarts(context.Background(), []enums.CartStatus{enums.CartStatusPlaced, enums.CartStatusPaymentFailed})
	require.NoError(t, err)

	// the shared test database may hold carts from other cases, so assert on
	// relative order of the seeded rows
	positions := map[uuid.UUID]int{}
	for i, row := range rows {
		positions[row.ID] = i
		assert.NotEqual(t, paid.ID, row.ID)
	}
	olderPos, ok := positions[older.ID]
	require.True(t, ok)
	newerPos, ok := positions[newer.ID]
	require.True(t, ok)
	assert.Less(t, olderPos, newerPos)
}

func TestRepositoryListLiveOrdersByService(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)

	serviceID := uuid.New()
	cart := seedCart(t, db, uuid.New(), enums.CartStatusUnplaced)
	live := seedOrder(t, db, cart, serviceID, time.Now().UTC())
	seedOrder(t, db, cart, uuid.New(), time.Now().UTC())

	placed := seedOrder(t, db, cart, serviceID, time.Now().UTC())
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", placed.ID).Update("status", enums.OrderStatusPlaced).Error)

	rows, err := repo.ListLiveOrdersByService(context.Background(), serviceID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, live.ID, rows[0].ID)
}

func TestRepositoryDeleteOrder(t *testing.T) {
	db := setupCartsTestDB(t)
	repo := NewRepository(db)

	cart := seedCart(t, db, uuid.New(), enums.CartStatusUnplaced)
	order := seedOrder(t, db, cart, uuid.New(), time.Now().UTC())

	removed, err := repo.DeleteOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.DeleteOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}
