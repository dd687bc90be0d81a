package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Emir1738/archestra/pkg/apperrors"
	"github.com/Emir1738/archestra/pkg/database"
	"github.com/Emir1738/archestra/pkg/models"
)

// PromptAssignmentRepository defines the interface for agent prompt
// assignment data access.
type PromptAssignmentRepository interface {
	// Assign links an agent to a prompt version in a slot.
	Assign(ctx context.Context, assignment *models.AgentPrompt) error
	// Retarget repoints every assignment referencing oldPromptID to
	// newPromptID, preserving agent, slot and position. Returns the number of
	// rows migrated. Must run inside the transaction that forks the version.
	Retarget(ctx context.Context, oldPromptID, newPromptID uuid.UUID) (int64, error)
	// DeleteByPrompt removes every assignment referencing the prompt version.
	// Returns the number of rows removed.
	DeleteByPrompt(ctx context.Context, promptID uuid.UUID) (int64, error)
	// ListByAgent returns the agent's assignments, system slot first, then
	// regular assignments in position order.
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*models.AgentPrompt, error)
	// CountByPrompt returns the number of assignments referencing the prompt version.
	CountByPrompt(ctx context.Context, promptID uuid.UUID) (int, error)
	// Unassign removes one of the agent's assignments by id. Returns
	// ErrNotFound if the row does not exist or belongs to another agent.
	Unassign(ctx context.Context, agentID, id uuid.UUID) error
}

// promptAssignmentRepository implements PromptAssignmentRepository using PostgreSQL.
type promptAssignmentRepository struct{}

// NewPromptAssignmentRepository creates a new prompt assignment repository.
func NewPromptAssignmentRepository() PromptAssignmentRepository {
	return &promptAssignmentRepository{}
}

// Assign links an agent to a prompt version in a slot.
func (r *promptAssignmentRepository) Assign(ctx context.Context, assignment *models.AgentPrompt) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	assignment.CreatedAt = time.Now()

	query := `
		INSERT INTO agent_prompts (id, agent_id, prompt_id, slot, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = q.Exec(ctx, query,
		assignment.ID,
		assignment.AgentID,
		assignment.PromptID,
		assignment.Slot,
		assignment.Position,
		assignment.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: agent already has this assignment", apperrors.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to assign prompt: %w", err)
	}

	return nil
}

// Retarget repoints every assignment referencing oldPromptID to newPromptID.
func (r *promptAssignmentRepository) Retarget(ctx context.Context, oldPromptID, newPromptID uuid.UUID) (int64, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return 0, err
	}

	result, err := q.Exec(ctx,
		`UPDATE agent_prompts SET prompt_id = $1 WHERE prompt_id = $2`,
		newPromptID, oldPromptID)
	if err != nil {
		return 0, fmt.Errorf("failed to retarget assignments: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteByPrompt removes every assignment referencing the prompt version.
func (r *promptAssignmentRepository) DeleteByPrompt(ctx context.Context, promptID uuid.UUID) (int64, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return 0, err
	}

	result, err := q.Exec(ctx, `DELETE FROM agent_prompts WHERE prompt_id = $1`, promptID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListByAgent returns the agent's assignments.
func (r *promptAssignmentRepository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*models.AgentPrompt, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, agent_id, prompt_id, slot, position, created_at
		FROM agent_prompts
		WHERE agent_id = $1
		ORDER BY slot = 'system' DESC, position, created_at`

	rows, err := q.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.AgentPrompt
	for rows.Next() {
		var a models.AgentPrompt
		err := rows.Scan(
			&a.ID,
			&a.AgentID,
			&a.PromptID,
			&a.Slot,
			&a.Position,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

// CountByPrompt returns the number of assignments referencing the prompt version.
func (r *promptAssignmentRepository) CountByPrompt(ctx context.Context, promptID uuid.UUID) (int, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	err = q.QueryRow(ctx, `SELECT COUNT(*) FROM agent_prompts WHERE prompt_id = $1`, promptID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}

	return count, nil
}

// Unassign removes one of the agent's assignments by id.
func (r *promptAssignmentRepository) Unassign(ctx context.Context, agentID, id uuid.UUID) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM agent_prompts WHERE id = $1 AND agent_id = $2`, id, agentID)
	if err != nil {
		return fmt.Errorf("failed to unassign prompt: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure promptAssignmentRepository implements PromptAssignmentRepository at compile time.
var _ PromptAssignmentRepository = (*promptAssignmentRepository)(nil)
