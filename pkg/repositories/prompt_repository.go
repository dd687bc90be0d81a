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

// PromptRepository defines the interface for prompt version data access.
// Rows are immutable apart from the is_active flag; version forks are new
// inserts. All methods run on the caller's transaction when one is active.
type PromptRepository interface {
	// Insert adds a new prompt version row. Returns ErrDuplicateKey if an
	// active version already exists for the same logical prompt.
	Insert(ctx context.Context, prompt *models.Prompt) error
	// GetActive returns the active version for the logical prompt, or ErrNotFound.
	GetActive(ctx context.Context, orgID uuid.UUID, name, promptType string) (*models.Prompt, error)
	// GetActiveForUpdate is GetActive with a row lock, serializing concurrent
	// writers on the same logical prompt for the rest of the transaction.
	GetActiveForUpdate(ctx context.Context, orgID uuid.UUID, name, promptType string) (*models.Prompt, error)
	// GetByID returns one specific version regardless of active status.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Prompt, error)
	// Deactivate clears is_active on one version row.
	Deactivate(ctx context.Context, id uuid.UUID) error
	// Delete removes one version row. Returns ErrNotFound if no such row.
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	// ListVersions returns every version of the logical prompt, oldest first.
	ListVersions(ctx context.Context, orgID uuid.UUID, name, promptType string) ([]*models.Prompt, error)
}

// promptRepository implements PromptRepository using PostgreSQL.
type promptRepository struct{}

// NewPromptRepository creates a new prompt repository.
func NewPromptRepository() PromptRepository {
	return &promptRepository{}
}

const promptColumns = `id, organization_id, name, prompt_type, version, content, description, is_active, created_at`

func scanPrompt(row pgx.Row) (*models.Prompt, error) {
	var p models.Prompt
	err := row.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Name,
		&p.PromptType,
		&p.Version,
		&p.Content,
		&p.Description,
		&p.IsActive,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan prompt: %w", err)
	}
	return &p, nil
}

// Insert adds a new prompt version row.
func (r *promptRepository) Insert(ctx context.Context, prompt *models.Prompt) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if prompt.ID == uuid.Nil {
		prompt.ID = uuid.New()
	}
	prompt.CreatedAt = time.Now()

	query := `
		INSERT INTO prompts (id, organization_id, name, prompt_type, version, content, description, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = q.Exec(ctx, query,
		prompt.ID,
		prompt.OrganizationID,
		prompt.Name,
		prompt.PromptType,
		prompt.Version,
		prompt.Content,
		prompt.Description,
		prompt.IsActive,
		prompt.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: active version already exists for %s/%s", apperrors.ErrDuplicateKey, prompt.Name, prompt.PromptType)
		}
		return fmt.Errorf("failed to insert prompt version: %w", err)
	}

	return nil
}

// GetActive returns the active version for the logical prompt.
func (r *promptRepository) GetActive(ctx context.Context, orgID uuid.UUID, name, promptType string) (*models.Prompt, error) {
	return r.getActive(ctx, orgID, name, promptType, false)
}

// GetActiveForUpdate returns the active version with a FOR UPDATE row lock.
func (r *promptRepository) GetActiveForUpdate(ctx context.Context, orgID uuid.UUID, name, promptType string) (*models.Prompt, error) {
	return r.getActive(ctx, orgID, name, promptType, true)
}

func (r *promptRepository) getActive(ctx context.Context, orgID uuid.UUID, name, promptType string, forUpdate bool) (*models.Prompt, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + promptColumns + `
		FROM prompts
		WHERE organization_id = $1 AND name = $2 AND prompt_type = $3 AND is_active`
	if forUpdate {
		query += `
		FOR UPDATE`
	}

	return scanPrompt(q.QueryRow(ctx, query, orgID, name, promptType))
}

// GetByID returns one specific version regardless of active status.
func (r *promptRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Prompt, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + promptColumns + `
		FROM prompts
		WHERE organization_id = $1 AND id = $2`

	return scanPrompt(q.QueryRow(ctx, query, orgID, id))
}

// Deactivate clears is_active on one version row.
func (r *promptRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `UPDATE prompts SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate prompt version: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes one version row.
func (r *promptRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM prompts WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt version: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListVersions returns every version of the logical prompt, oldest first.
func (r *promptRepository) ListVersions(ctx context.Context, orgID uuid.UUID, name, promptType string) ([]*models.Prompt, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + promptColumns + `
		FROM prompts
		WHERE organization_id = $1 AND name = $2 AND prompt_type = $3
		ORDER BY version`

	rows, err := q.Query(ctx, query, orgID, name, promptType)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt versions: %w", err)
	}
	defer rows.Close()

	var prompts []*models.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompt versions: %w", err)
	}

	return prompts, nil
}

// Ensure promptRepository implements PromptRepository at compile time.
var _ PromptRepository = (*promptRepository)(nil)
