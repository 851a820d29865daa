package auth

import (
	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ActorID string
	Name    string
	Role    enums.ActorRole
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients. The actor id travels as sub.
type AccessTokenClaims struct {
	Name string          `json:"name,omitempty"`
	Role enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// ActorID returns the authenticated actor (worker, customer, shop) identifier.
func (c *AccessTokenClaims) ActorID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
