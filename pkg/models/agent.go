package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a prompt consumer owned by an organization.
type Agent struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}
