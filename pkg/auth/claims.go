package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by memoir access tokens.
// The subject is the user's UUID; every memory operation is scoped to it.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the token subject, which memoir issues as the user UUID.
func (c *Claims) UserID() string {
	return c.Subject
}
