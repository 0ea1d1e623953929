package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/promptlyprinted/promptly-backend/pkg/enums"
)

// StaffTokenPayload captures the data available when minting a staff JWT.
type StaffTokenPayload struct {
	Subject string
	Email   string
	Role    enums.StaffRole
	JTI     string
}

// StaffClaims is the typed JWT accepted by the back-office API.
type StaffClaims struct {
	Email string          `json:"email,omitempty"`
	Role  enums.StaffRole `json:"role"`
	jwt.RegisteredClaims
}
