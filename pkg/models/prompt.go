package models

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is one immutable version of a logical prompt. The logical prompt is
// identified by (organization, name, prompt type); its history is the set of
// rows sharing that key, ordered by Version. Exactly one row per logical
// prompt has IsActive set.
type Prompt struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	PromptType     string    `json:"prompt_type"` // 'system', 'regular'
	Version        int       `json:"version"`
	Content        string    `json:"content"`
	Description    string    `json:"description"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Prompt type constants.
const (
	PromptTypeSystem  = "system"
	PromptTypeRegular = "regular"
)

// ValidPromptTypes contains all valid prompt type values.
var ValidPromptTypes = []string{PromptTypeSystem, PromptTypeRegular}

// IsValidPromptType checks if the given prompt type is valid.
func IsValidPromptType(promptType string) bool {
	for _, t := range ValidPromptTypes {
		if t == promptType {
			return true
		}
	}
	return false
}

// PromptUpdate describes the content of a new prompt version. Nil fields
// inherit their value from the superseded version.
type PromptUpdate struct {
	Content     *string `json:"content"`
	Description *string `json:"description"`
}
