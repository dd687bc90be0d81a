package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform account. Users are global, not organization-scoped: one
// user may hold memberships in several organizations. A user with no
// memberships left is orphaned and is deleted together with its sessions.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
