package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

// Pickup holds the campus pickup details for a cart that chose a pickup
// collection type. Mutually exclusive with Delivery.
type Pickup struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID        uuid.UUID              `gorm:"column:cart_id;type:uuid;not null;uniqueIndex"`
	Location      string                 `gorm:"column:location;type:text;not null"`
	Slot          string                 `gorm:"column:slot;type:text"`
	ContactNumber string                 `gorm:"column:contact_number;type:text;not null"`
	Status        enums.CollectionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
