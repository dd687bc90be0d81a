package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Emir1738/archestra/pkg/apperrors"
	"github.com/Emir1738/archestra/pkg/database"
	"github.com/Emir1738/archestra/pkg/models"
	"github.com/Emir1738/archestra/pkg/repositories"
	"github.com/Emir1738/archestra/pkg/retry"
)

// RemovalResult reports what a membership removal deleted.
type RemovalResult struct {
	Member          *models.OrganizationMember `json:"member"`
	UserDeleted     bool                       `json:"user_deleted"`
	SessionsDeleted int64                      `json:"sessions_deleted"`
}

// MembershipService defines the interface for organization membership operations.
//
// Users exist only while at least one organization still claims them. Removing
// a user's last membership deletes the user and every session it owns in the
// same transaction, so no orphaned user or dangling session is ever visible.
type MembershipService interface {
	// AddMember links an existing user to the organization.
	// Returns ErrDuplicateKey if the user is already a member.
	AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) (*models.OrganizationMember, error)
	// RemoveMember removes one membership. The identifier may be either the
	// membership id or the user id; membership id is tried first. If the
	// removed link was the user's last across all organizations, the user and
	// its sessions are deleted in the same transaction.
	RemoveMember(ctx context.Context, orgID, identifier uuid.UUID) (*RemovalResult, error)
	// ListMembers returns all memberships of the organization.
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]*models.OrganizationMember, error)
}

// membershipService implements MembershipService.
type membershipService struct {
	memberRepo  repositories.MemberRepository
	userRepo    repositories.UserRepository
	sessionRepo repositories.SessionRepository
	runTx       database.TxRunner
	retryCfg    *retry.Config
	logger      *zap.Logger
}

// NewMembershipService creates a new membership service with dependencies.
func NewMembershipService(
	memberRepo repositories.MemberRepository,
	userRepo repositories.UserRepository,
	sessionRepo repositories.SessionRepository,
	runTx database.TxRunner,
	logger *zap.Logger,
) MembershipService {
	return &membershipService{
		memberRepo:  memberRepo,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		runTx:       runTx,
		retryCfg:    retry.DefaultConfig(),
		logger:      logger,
	}
}

// AddMember links an existing user to the organization.
func (s *membershipService) AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) (*models.OrganizationMember, error) {
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	member := &models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
	}

	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.runTx(ctx, func(txCtx context.Context) error {
			if _, err := s.userRepo.GetByID(txCtx, userID); err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
				}
				return err
			}

			return s.memberRepo.Add(txCtx, member)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Added organization member",
		zap.String("org_id", orgID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", role))

	return member, nil
}

// RemoveMember removes one membership and cascades to the user when it was the last.
func (s *membershipService) RemoveMember(ctx context.Context, orgID, identifier uuid.UUID) (*RemovalResult, error) {
	var result *RemovalResult

	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.runTx(ctx, func(txCtx context.Context) error {
			member, err := s.resolveMember(txCtx, orgID, identifier)
			if err != nil {
				return err
			}

			if err := s.memberRepo.Delete(txCtx, member.ID); err != nil {
				return err
			}

			result = &RemovalResult{Member: member}

			// Lock the user row before counting. Two transactions removing the
			// same user's last two links each delete their own row first, then
			// queue here: the one that commits second sees count zero and
			// performs the cascade exactly once.
			locked, err := s.userRepo.LockByID(txCtx, member.UserID)
			if err != nil {
				return err
			}
			if !locked {
				// User already deleted by a concurrent removal.
				return nil
			}

			remaining, err := s.memberRepo.CountByUser(txCtx, member.UserID)
			if err != nil {
				return err
			}
			if remaining > 0 {
				return nil
			}

			// Last link is gone. Sessions first, the FK would reject deleting
			// the user while any session still points at it.
			sessions, err := s.sessionRepo.DeleteByUser(txCtx, member.UserID)
			if err != nil {
				return err
			}
			if err := s.userRepo.Delete(txCtx, member.UserID); err != nil {
				return err
			}

			result.UserDeleted = true
			result.SessionsDeleted = sessions
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result.UserDeleted {
		s.logger.Info("Removed last membership, deleted user",
			zap.String("org_id", orgID.String()),
			zap.String("user_id", result.Member.UserID.String()),
			zap.Int64("sessions_deleted", result.SessionsDeleted))
	} else {
		s.logger.Info("Removed organization member",
			zap.String("org_id", orgID.String()),
			zap.String("user_id", result.Member.UserID.String()))
	}

	return result, nil
}

// resolveMember finds the membership named by identifier, trying membership id
// first and falling back to user id within the organization.
func (s *membershipService) resolveMember(ctx context.Context, orgID, identifier uuid.UUID) (*models.OrganizationMember, error) {
	member, err := s.memberRepo.GetByID(ctx, orgID, identifier)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	member, err = s.memberRepo.GetByUser(ctx, orgID, identifier)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: no membership matches %s", apperrors.ErrNotFound, identifier)
		}
		return nil, err
	}

	return member, nil
}

// ListMembers returns all memberships of the organization.
func (s *membershipService) ListMembers(ctx context.Context, orgID uuid.UUID) ([]*models.OrganizationMember, error) {
	return s.memberRepo.ListByOrganization(ctx, orgID)
}

// Ensure membershipService implements MembershipService at compile time.
var _ MembershipService = (*membershipService)(nil)
