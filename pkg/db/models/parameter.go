package models

import (
	"time"

	"github.com/google/uuid"
)

// Parameter is a priced add-on a service can allow (extra copy, attestation,
// envelope). Charged per requested unit.
type Parameter struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string    `gorm:"column:name;type:text;not null"`
	BaseCharge int       `gorm:"column:base_charge;not null"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedBy  string    `gorm:"column:created_by;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
