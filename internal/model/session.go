package model

import (
	"time"
)

type Session struct {
	ID         string    `db:"id" json:"id"`
	TokenHash  string    `db:"token_hash" json:"-"`
	IdentityID string    `db:"identity_id" json:"identityId"`
	ExpiresAt  time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type CreateSessionParams struct {
	TokenHash  string
	IdentityID string
	ExpiresAt  time.Time
}
