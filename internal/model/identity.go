package model

import (
	"time"
)

type Identity struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"fullName"`
	UserImage    *string   `db:"user_image" json:"userImage,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Enabled      bool      `db:"enabled" json:"enabled"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type CreateIdentityParams struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
}

type Customer struct {
	ID           string    `db:"id" json:"id"`
	CustomerName string    `db:"customer_name" json:"customerName"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Actor is the identity performing an operation together with its roles.
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

func (a *Actor) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
