// Package auth encodes and verifies RS256 access tokens and mints opaque
// refresh token values.
package auth

import (
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload. Wire names are fixed: sub, user_id,
// rol, iat, exp. All five are required on decode.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"rol"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token was issued to an administrator.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == models.RoleAdmin
}
