package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persisted user record. PasswordHash never leaves the package:
// it is excluded from JSON and from the Profile view.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username     string     `bun:"username,notnull" json:"username,omitempty"`
	Email        string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	Bio          string     `bun:"bio" json:"bio,omitempty"`
	Avatar       string     `bun:"avatar" json:"avatar,omitempty"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt    *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Active reports whether the record has not been soft deleted.
func (u *User) Active() bool {
	return u != nil && u.DeletedAt == nil
}

// Profile returns the outward-facing view of the record.
func (u *User) Profile() *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Bio:      u.Bio,
		Avatar:   u.Avatar,
	}
}

// Profile is what callers outside the package see. It deliberately has no
// field for secret material.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Bio      string    `json:"bio"`
	Avatar   string    `json:"avatar"`
}

// prepareUserDefaults assigns an id and normalizes the email before the
// record becomes durable.
func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = strings.TrimSpace(record.Email)
	record.Username = strings.TrimSpace(record.Username)
}

// tokenIdentity adapts a User to the Identity interface consumed by the
// token service.
type tokenIdentity struct {
	id       string
	username string
	email    string
}

func identityFromUser(u *User) tokenIdentity {
	return tokenIdentity{
		id:       u.ID.String(),
		username: u.Username,
		email:    u.Email,
	}
}

func (i tokenIdentity) ID() string       { return i.id }
func (i tokenIdentity) Username() string { return i.username }
func (i tokenIdentity) Email() string    { return i.email }
