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

// UserRepository defines the interface for user account data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// LockByID takes a FOR UPDATE lock on the user row, serializing concurrent
	// cascade decisions on the same user. Returns false if the row is gone.
	LockByID(ctx context.Context, id uuid.UUID) (bool, error)
	// Delete removes the user row. Returns ErrNotFound if no such row.
	Delete(ctx context.Context, id uuid.UUID) error
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

// Create inserts a new user account.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()

	query := `
		INSERT INTO users (id, email, name, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err = q.Exec(ctx, query, user.ID, user.Email, user.Name, user.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", apperrors.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by id.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = q.QueryRow(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = $1`, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// LockByID takes a FOR UPDATE lock on the user row.
func (r *userRepository) LockByID(ctx context.Context, id uuid.UUID) (bool, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return false, err
	}

	var locked uuid.UUID
	err = q.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock user: %w", err)
	}

	return true, nil
}

// Delete removes the user row.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure userRepository implements UserRepository at compile time.
var _ UserRepository = (*userRepository)(nil)
