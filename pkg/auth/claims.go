package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	MemberID string
	Role     enums.UserRole
	Verified bool
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID   uuid.UUID      `json:"user_id"`
	MemberID string         `json:"member_id"`
	Role     enums.UserRole `json:"role"`
	Verified bool           `json:"verified"`
	jwt.RegisteredClaims
}
