package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

// Delivery holds the courier address for a cart that chose a delivery
// collection type. Courier name and tracking id are filled in by the admin
// when the shipment goes out; both are required before completion.
type Delivery struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID        uuid.UUID              `gorm:"column:cart_id;type:uuid;not null;uniqueIndex"`
	Name          string                 `gorm:"column:name;type:text;not null"`
	AddressLine1  string                 `gorm:"column:address_line1;type:text;not null"`
	AddressLine2  string                 `gorm:"column:address_line2;type:text"`
	City          string                 `gorm:"column:city;type:text;not null"`
	State         string                 `gorm:"column:state;type:text;not null"`
	PinCode       string                 `gorm:"column:pin_code;type:text;not null"`
	ContactNumber string                 `gorm:"column:contact_number;type:text;not null"`
	Status        enums.CollectionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CourierName   *string                `gorm:"column:courier_name;type:text"`
	TrackingID    *string                `gorm:"column:tracking_id;type:text"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
