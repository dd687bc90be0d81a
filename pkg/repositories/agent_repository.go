package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Emir1738/archestra/pkg/apperrors"
	"github.com/Emir1738/archestra/pkg/database"
	"github.com/Emir1738/archestra/pkg/models"
)

// AgentRepository defines the interface for agent data access.
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Agent, error)
}

// agentRepository implements AgentRepository using PostgreSQL.
type agentRepository struct{}

// NewAgentRepository creates a new agent repository.
func NewAgentRepository() AgentRepository {
	return &agentRepository{}
}

// Create inserts a new agent.
func (r *agentRepository) Create(ctx context.Context, agent *models.Agent) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	agent.CreatedAt = time.Now()

	query := `
		INSERT INTO agents (id, organization_id, name, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err = q.Exec(ctx, query, agent.ID, agent.OrganizationID, agent.Name, agent.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

// GetByID retrieves an agent scoped to the organization.
func (r *agentRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Agent, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	var agent models.Agent
	err = q.QueryRow(ctx,
		`SELECT id, organization_id, name, created_at FROM agents WHERE organization_id = $1 AND id = $2`,
		orgID, id).Scan(
		&agent.ID,
		&agent.OrganizationID,
		&agent.Name,
		&agent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return &agent, nil
}

// Ensure agentRepository implements AgentRepository at compile time.
var _ AgentRepository = (*agentRepository)(nil)
