package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	dbtypes "github.com/campusdesk/campusdesk-backend/pkg/db/types"
)

// Service is a catalog entry students can request (transcript, certificate,
// document). Eligibility predicates are unrestricted when empty; when set
// they must contain the user's value or the "*" wildcard. Special services
// ignore the predicates and use the explicit member allow-list instead.
type Service struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;type:text;not null"`
	Description string    `gorm:"column:description;type:text"`
	BaseCharge  int       `gorm:"column:base_charge;not null"`
	MaxUnits    int       `gorm:"column:max_units;not null;default:1"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`

	IsSpecial      bool           `gorm:"column:is_special;not null;default:false"`
	SpecialMembers pq.StringArray `gorm:"column:special_members;type:text[]"`

	AllowedProgrammes   pq.StringArray `gorm:"column:allowed_programmes;type:text[]"`
	AllowedBatches      pq.StringArray `gorm:"column:allowed_batches;type:text[]"`
	AllowedUserTypes    pq.StringArray `gorm:"column:allowed_user_types;type:text[]"`
	AllowedUserStatuses pq.StringArray `gorm:"column:allowed_user_statuses;type:text[]"`

	PaymentModes           pq.StringArray   `gorm:"column:payment_modes;type:text[]"`
	AllowedParameters      dbtypes.UUIDArray `gorm:"column:allowed_parameters;type:uuid[]"`
	AllowedCollectionTypes dbtypes.UUIDArray `gorm:"column:allowed_collection_types;type:uuid[]"`

	CreatedBy string    `gorm:"column:created_by;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
