package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenancy scope for agents, prompts and memberships.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
