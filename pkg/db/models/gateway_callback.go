package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// GatewayCallback is the unconditional audit row for every payload the bank
// gateway posts to us, signature match or not. Support staff reconcile
// disputed payments against these rows.
type GatewayCallback struct {
	ID             uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferenceNo    string        `gorm:"column:reference_no;type:text;index"`
	UniqueRef      string        `gorm:"column:unique_ref;type:text"`
	ResponseCode   string        `gorm:"column:response_code;type:text"`
	SignatureValid bool          `gorm:"column:signature_valid;not null"`
	Payload        types.JSONMap `gorm:"column:payload;type:jsonb;serializer:json"`
	ReceivedAt     time.Time     `gorm:"column:received_at;not null"`
}
