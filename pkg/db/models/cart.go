package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// Cart is the single live, mutable cart a user holds before payment. Its
// cost columns are derived: they are recomputed against the current catalog
// on every read or mutation and never trusted from storage alone. Once the
// cart is placed it is snapshotted into a PlacedCart and this row is
// replaced by a fresh empty one.
type Cart struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderCode   string           `gorm:"column:order_code;type:text;not null;uniqueIndex"`
	RequestedBy uuid.UUID        `gorm:"column:requested_by;type:uuid;not null;index"`
	Status      enums.CartStatus `gorm:"column:status;not null;default:20"`

	CollectionTypeID   *uuid.UUID                `gorm:"column:collection_type_id;type:uuid"`
	CollectionCategory *enums.CollectionCategory `gorm:"column:collection_category;type:text"`
	CollectionTypeCost int                       `gorm:"column:collection_type_cost;not null;default:0"`
	OrdersCost         int                       `gorm:"column:orders_cost;not null;default:0"`
	TotalCost          int                       `gorm:"column:total_cost;not null;default:0"`

	Delivery *Delivery `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Pickup   *Pickup   `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Orders   []Order   `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`

	PaymentType        *enums.PaymentType    `gorm:"column:payment_type;type:text"`
	PaymentID          *string               `gorm:"column:payment_id;type:text"`
	PaymentCode        *string               `gorm:"column:payment_code;type:text;index"`
	PaymentStatus      bool                  `gorm:"column:payment_status;not null;default:false"`
	PaymentFailHistory types.PaymentFailures `gorm:"column:payment_fail_history;type:jsonb;serializer:json"`

	StatusTimeline types.StatusTimeline `gorm:"column:status_timeline;type:jsonb;serializer:json"`
	CancelReason   *string              `gorm:"column:cancel_reason;type:text"`
	Comments       types.JSONMap        `gorm:"column:comments;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
