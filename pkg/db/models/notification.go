package models

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastRecipient addresses a notification to every user.
const BroadcastRecipient = "all"

// Notification stores in-app notification payloads. Recipient is a member id
// or BroadcastRecipient. CartID correlates a notification with a cart and is
// rewritten to the placed cart's id when the cart identity changes at
// placement.
type Notification struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Recipient string     `gorm:"column:recipient;type:text;not null;index"`
	CreatedBy string     `gorm:"column:created_by;type:text;not null"`
	Message   string     `gorm:"column:message;type:text;not null"`
	CartID    *uuid.UUID `gorm:"column:cart_id;type:uuid;index"`
	ReadAt    *time.Time `gorm:"column:read_at;type:timestamptz"`
	CreatedAt time.Time  `gorm:"column:created_at;type:timestamptz;default:now()"`
}
