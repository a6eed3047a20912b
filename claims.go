package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the identity fields carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UserID returns the token holder's id, falling back to the subject claim.
func (c *Claims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// UserUUID parses the token holder's id as a UUID.
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID())
}

// Expires returns the expiration time, zero when absent.
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued-at time, zero when absent.
func (c *Claims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
