package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// PlacedOrder freezes one order's service and parameter values at placement
// time. Unlike the rest of the snapshot its status keeps evolving: admins
// drive it through processing, ready and completed during fulfillment.
type PlacedOrder struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PlacedCartID  uuid.UUID `gorm:"column:placed_cart_id;type:uuid;not null;index"`
	SourceOrderID uuid.UUID `gorm:"column:source_order_id;type:uuid;not null;uniqueIndex"`
	RequestedBy   uuid.UUID `gorm:"column:requested_by;type:uuid;not null;index"`

	ServiceID         uuid.UUID                `gorm:"column:service_id;type:uuid;not null"`
	ServiceName       string                   `gorm:"column:service_name;type:text;not null"`
	ServiceBaseCharge int                      `gorm:"column:service_base_charge;not null"`
	UnitsRequested    int                      `gorm:"column:units_requested;not null"`
	Parameters        types.ParameterSnapshots `gorm:"column:parameters;type:jsonb;serializer:json"`

	ServiceCost   int `gorm:"column:service_cost;not null"`
	ParameterCost int `gorm:"column:parameter_cost;not null"`
	TotalCost     int `gorm:"column:total_cost;not null"`

	Status         enums.OrderStatus    `gorm:"column:status;not null;default:30"`
	StatusTimeline types.StatusTimeline `gorm:"column:status_timeline;type:jsonb;serializer:json"`
	Comment        *string              `gorm:"column:comment;type:text"`
	CancelReason   *string              `gorm:"column:cancel_reason;type:text"`
	HoldReason     *string              `gorm:"column:hold_reason;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
