package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

// CollectionType is how a finished request reaches the student: a courier
// delivery option or a campus pickup window, each with its own charge.
type CollectionType struct {
	ID         uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string                   `gorm:"column:name;type:text;not null"`
	Category   enums.CollectionCategory `gorm:"column:category;type:text;not null"`
	BaseCharge int                      `gorm:"column:base_charge;not null"`
	IsActive   bool                     `gorm:"column:is_active;not null;default:true"`
	CreatedBy  string                   `gorm:"column:created_by;type:text;not null"`
	CreatedAt  time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
