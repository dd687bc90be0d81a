package models

import (
	"time"

	"github.com/google/uuid"
)

// UserSession is a login session owned by exactly one user. Sessions never
// outlive their user: deleting the user deletes every session in the same
// transaction.
type UserSession struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
