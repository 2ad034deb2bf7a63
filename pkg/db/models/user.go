package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

// User is an institution member. MemberID is the institutional id that shows
// up as the actor in status timelines.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MemberID     string         `gorm:"column:member_id;type:text;not null;uniqueIndex"`
	Name         string         `gorm:"column:name;type:text;not null"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;type:text;not null"`
	Role         enums.UserRole `gorm:"column:role;type:text;not null;default:'student'"`
	Programme    string         `gorm:"column:programme;type:text"`
	Batch        string         `gorm:"column:batch;type:text"`
	UserType     string         `gorm:"column:user_type;type:text"`
	UserStatus   string         `gorm:"column:user_status;type:text"`
	Verified     bool           `gorm:"column:verified;not null;default:false"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
