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

// MemberRepository defines the interface for organization membership data access.
type MemberRepository interface {
	// Add creates a membership link between a user and an organization.
	Add(ctx context.Context, member *models.OrganizationMember) error
	// GetByID returns a membership by its own id, scoped to the organization.
	GetByID(ctx context.Context, orgID, memberID uuid.UUID) (*models.OrganizationMember, error)
	// GetByUser returns the user's membership in the organization.
	GetByUser(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error)
	// Delete removes one membership row. Returns ErrNotFound if no such row.
	Delete(ctx context.Context, id uuid.UUID) error
	// CountByUser returns the user's remaining membership count across ALL
	// organizations. Run inside the deletion transaction to be authoritative.
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	// ListByOrganization returns all memberships of an organization.
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.OrganizationMember, error)
}

// memberRepository implements MemberRepository using PostgreSQL.
type memberRepository struct{}

// NewMemberRepository creates a new member repository.
func NewMemberRepository() MemberRepository {
	return &memberRepository{}
}

const memberColumns = `id, organization_id, user_id, role, created_at`

func scanMember(row pgx.Row) (*models.OrganizationMember, error) {
	var m models.OrganizationMember
	err := row.Scan(
		&m.ID,
		&m.OrganizationID,
		&m.UserID,
		&m.Role,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	return &m, nil
}

// Add creates a membership link between a user and an organization.
func (r *memberRepository) Add(ctx context.Context, member *models.OrganizationMember) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	member.CreatedAt = time.Now()

	query := `
		INSERT INTO organization_members (id, organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = q.Exec(ctx, query,
		member.ID,
		member.OrganizationID,
		member.UserID,
		member.Role,
		member.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: user is already a member", apperrors.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// GetByID returns a membership by its own id, scoped to the organization.
func (r *memberRepository) GetByID(ctx context.Context, orgID, memberID uuid.UUID) (*models.OrganizationMember, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + memberColumns + `
		FROM organization_members
		WHERE organization_id = $1 AND id = $2`

	return scanMember(q.QueryRow(ctx, query, orgID, memberID))
}

// GetByUser returns the user's membership in the organization.
func (r *memberRepository) GetByUser(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + memberColumns + `
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2`

	return scanMember(q.QueryRow(ctx, query, orgID, userID))
}

// Delete removes one membership row.
func (r *memberRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM organization_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// CountByUser returns the user's remaining membership count across all organizations.
func (r *memberRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	err = q.QueryRow(ctx, `SELECT COUNT(*) FROM organization_members WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}

	return count, nil
}

// ListByOrganization returns all memberships of an organization.
func (r *memberRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.OrganizationMember, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + memberColumns + `
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.OrganizationMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// Ensure memberRepository implements MemberRepository at compile time.
var _ MemberRepository = (*memberRepository)(nil)
