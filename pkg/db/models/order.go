package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/campusdesk/campusdesk-backend/pkg/db/types"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// Order is one service request inside a live cart. It exists only until its
// cart is placed; placement converts it into a PlacedOrder and discards the
// live row. ServiceName is denormalized so eviction notices stay readable
// after the catalog entry disappears.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID      uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	RequestedBy uuid.UUID `gorm:"column:requested_by;type:uuid;not null"`

	ServiceID      uuid.UUID         `gorm:"column:service_id;type:uuid;not null"`
	ServiceName    string            `gorm:"column:service_name;type:text;not null"`
	UnitsRequested int               `gorm:"column:units_requested;not null"`
	ParameterIDs   dbtypes.UUIDArray `gorm:"column:parameter_ids;type:uuid[]"`

	ServiceCost   int `gorm:"column:service_cost;not null;default:0"`
	ParameterCost int `gorm:"column:parameter_cost;not null;default:0"`
	TotalCost     int `gorm:"column:total_cost;not null;default:0"`

	Status         enums.OrderStatus    `gorm:"column:status;not null;default:20"`
	StatusTimeline types.StatusTimeline `gorm:"column:status_timeline;type:jsonb;serializer:json"`
	Comment        *string              `gorm:"column:comment;type:text"`
	CancelReason   *string              `gorm:"column:cancel_reason;type:text"`
	HoldReason     *string              `gorm:"column:hold_reason;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
