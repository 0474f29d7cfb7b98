package models

import "time"

// Role names seeded at migration time.
const (
	RoleAdmin    = "admin"
	RoleEditor   = "editor"
	RoleUser     = "user"
	RoleLecturer = "lecturer"
)

type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email,omitempty"`
	PasswordHash   string     `json:"-"`
	FirstName      string     `json:"firstName,omitempty"`
	LastName       string     `json:"lastName,omitempty"`
	Avatar         *string    `json:"avatar,omitempty"`
	IsActive       bool       `json:"isActive"`
	EmailConfirmed bool       `json:"emailConfirmed"`
	CanAccessAdmin bool       `json:"-"`
	SessionVersion int        `json:"-"`
	Roles          []string   `json:"roles,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`

	// Single-use token digests. Raw tokens are never stored.
	ConfirmationTokenHash    *string    `json:"-"`
	ConfirmationTokenExpires *time.Time `json:"-"`
	ResetTokenHash           *string    `json:"-"`
	ResetTokenExpires        *time.Time `json:"-"`
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
