package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Name   string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims represents the storefront access token. The subject is the user id.
type AccessTokenClaims struct {
	Email string         `json:"email,omitempty"`
	Name  string         `json:"name,omitempty"`
	Role  enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the authenticated user id carried in the subject claim.
func (c *AccessTokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
