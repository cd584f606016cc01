// Package model defines the persisted entities and the identities derived
// from them.
package model

import (
	"database/sql"
	"time"
)

// Role is the authorization level carried in tokens and checked by the
// role middleware. The values match the "role" claim of issued JWTs.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Member is a row of the members table. PasswordHash is null for accounts
// provisioned through an OAuth provider; DeletedAt is set instead of
// physically removing the row.
type Member struct {
	ID           uint64
	Email        string
	PasswordHash sql.NullString
	Nickname     sql.NullString
	ImageURL     sql.NullString
	Role         string
	CreatedAt    time.Time
	DeletedAt    sql.NullTime
}

// Principal is the resolved identity attached to an authenticated request.
// It is embedded in access tokens and stored against refresh tokens; it is
// never persisted on its own.
type Principal struct {
	ID   uint64 `json:"id"`
	Role string `json:"role"`
}
