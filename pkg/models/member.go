package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationMember links a user to an organization.
type OrganizationMember struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"` // 'admin', 'member'
	CreatedAt      time.Time `json:"created_at"`
}

// Role constants for membership roles within an organization.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}
