package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Emir1738/archestra/pkg/database"
	"github.com/Emir1738/archestra/pkg/models"
)

// SessionRepository defines the interface for user session data access.
type SessionRepository interface {
	Create(ctx context.Context, session *models.UserSession) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserSession, error)
	// DeleteByUser removes every session belonging to the user. Returns the
	// number of rows removed. Called inside the user-deletion transaction so
	// no session survives its owner.
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// sessionRepository implements SessionRepository using PostgreSQL.
type sessionRepository struct{}

// NewSessionRepository creates a new session repository.
func NewSessionRepository() SessionRepository {
	return &sessionRepository{}
}

// Create inserts a new session for a user.
func (r *sessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()

	query := `
		INSERT INTO user_sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = q.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// ListByUser returns all sessions belonging to the user.
func (r *sessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserSession, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM user_sessions
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.UserSession
	for rows.Next() {
		var s models.UserSession
		err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.TokenHash,
			&s.ExpiresAt,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// DeleteByUser removes every session belonging to the user.
func (r *sessionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return 0, err
	}

	result, err := q.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}

	return result.RowsAffected(), nil
}

// Ensure sessionRepository implements SessionRepository at compile time.
var _ SessionRepository = (*sessionRepository)(nil)
