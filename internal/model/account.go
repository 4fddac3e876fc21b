package model

import (
	"strings"
	"time"
)

const (
	// RoleUser is the default account role.
	RoleUser = "user"
	// RoleAdmin is the role of moderators.
	RoleAdmin = "admin"
)

// An Account represents a database record.
type Account struct {
	Base `msgpack:",inline" storm:"inline"`

	Name            string     `msgpack:"name"  storm:"unique"`
	Safename        string     `msgpack:"safename" storm:"unique"`
	Email           string     `msgpack:"email" storm:"unique"`
	Role            string     `msgpack:"role"`
	EmailVerifiedAt *time.Time `msgpack:"email_verified_at,omitempty"`
	BannedUntil     *time.Time `msgpack:"banned_until,omitempty"`
	BanCount        int        `msgpack:"ban_count"`
}

// NewAccount returns a new account with default params.
func NewAccount(name, email string) *Account {
	return &Account{
		Name:     name,
		Safename: Safename(name),
		Email:    email,
		Role:     RoleUser,
	}
}

// IsBanned returns true if the account is banned at the given time.
func (a *Account) IsBanned(now time.Time) bool {
	return a.BannedUntil != nil && a.BannedUntil.After(now)
}

// IsValidRole returns true if the given role exists.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// Safename returns the URL-safe, case-insensitive form of an account name.
func Safename(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
