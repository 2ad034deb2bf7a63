package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// PlacedCart is the immutable snapshot written when a cart is placed, and
// the operative record for admin fulfillment from then on. It embeds the
// collection type and courier/pickup values rather than referencing the
// catalog, so later catalog edits can never alter historical invoices.
type PlacedCart struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SourceCartID uuid.UUID        `gorm:"column:source_cart_id;type:uuid;not null;uniqueIndex"`
	OrderCode    string           `gorm:"column:order_code;type:text;not null;uniqueIndex"`
	RequestedBy  uuid.UUID        `gorm:"column:requested_by;type:uuid;not null;index"`
	Status       enums.CartStatus `gorm:"column:status;not null;default:30"`

	CollectionType     *types.CollectionSnapshot `gorm:"column:collection_type;type:jsonb;serializer:json"`
	CollectionCategory *enums.CollectionCategory `gorm:"column:collection_category;type:text"`
	Delivery           *types.DeliverySnapshot   `gorm:"column:delivery;type:jsonb;serializer:json"`
	Pickup             *types.PickupSnapshot     `gorm:"column:pickup;type:jsonb;serializer:json"`

	CollectionTypeCost int `gorm:"column:collection_type_cost;not null;default:0"`
	OrdersCost         int `gorm:"column:orders_cost;not null;default:0"`
	TotalCost          int `gorm:"column:total_cost;not null;default:0"`

	Orders []PlacedOrder `gorm:"foreignKey:PlacedCartID;constraint:OnDelete:CASCADE"`

	PaymentType        enums.PaymentType     `gorm:"column:payment_type;type:text;not null"`
	PaymentID          *string               `gorm:"column:payment_id;type:text"`
	PaymentCode        *string               `gorm:"column:payment_code;type:text;index"`
	PaymentStatus      bool                  `gorm:"column:payment_status;not null;default:false"`
	PaymentFailHistory types.PaymentFailures `gorm:"column:payment_fail_history;type:jsonb;serializer:json"`

	StatusTimeline types.StatusTimeline `gorm:"column:status_timeline;type:jsonb;serializer:json"`
	CancelReason   *string              `gorm:"column:cancel_reason;type:text"`
	Comments       types.JSONMap        `gorm:"column:comments;type:jsonb;serializer:json"`

	PlacedAt  time.Time `gorm:"column:placed_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
