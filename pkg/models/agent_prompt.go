package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentPrompt links an agent to one specific prompt version in a slot.
// The system slot holds a single prompt per agent; the regular slot is an
// ordered list. Assignments always reference the active version of their
// prompt: publishing a new version retargets them in the same transaction.
type AgentPrompt struct {
	ID        uuid.UUID `json:"id"`
	AgentID   uuid.UUID `json:"agent_id"`
	PromptID  uuid.UUID `json:"prompt_id"`
	Slot      string    `json:"slot"` // 'system', 'regular'
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Slot constants for agent prompt assignments.
const (
	SlotSystem  = "system"
	SlotRegular = "regular"
)

// IsValidSlot checks if the given slot is valid.
func IsValidSlot(slot string) bool {
	return slot == SlotSystem || slot == SlotRegular
}
