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

// PromptService defines the interface for prompt lifecycle operations.
//
// Prompts are versioned: an update never mutates the stored content, it forks
// the next version and atomically repoints every agent assignment from the
// superseded version to the new one. Readers never observe a logical prompt
// with zero or two active versions, and never an assignment referencing an
// inactive version.
type PromptService interface {
	// Create creates version 1 of a new logical prompt.
	// Returns ErrDuplicateKey if the logical prompt already has an active version.
	Create(ctx context.Context, orgID uuid.UUID, name, promptType, content, description string) (*models.Prompt, error)
	// CreateNextVersion forks the next version of an existing logical prompt.
	// Nil fields of update inherit from the superseded version. Every agent
	// assignment is retargeted to the new version in the same transaction.
	// Returns ErrNotFound if the logical prompt has no active version.
	CreateNextVersion(ctx context.Context, orgID uuid.UUID, name, promptType string, update models.PromptUpdate) (*models.Prompt, error)
	// GetActive returns the active version of the logical prompt.
	GetActive(ctx context.Context, orgID uuid.UUID, name, promptType string) (*models.Prompt, error)
	// GetVersion returns one specific version by id, active or not.
	// Superseded versions are kept indefinitely for history views.
	GetVersion(ctx context.Context, orgID, versionID uuid.UUID) (*models.Prompt, error)
	// ListVersions returns the full version history of the logical prompt, oldest first.
	ListVersions(ctx context.Context, orgID uuid.UUID, name, promptType string) ([]*models.Prompt, error)
	// DeleteVersion removes one version row, deleting its assignments first.
	// It never deletes other versions of the same logical prompt.
	DeleteVersion(ctx context.Context, orgID, versionID uuid.UUID) error
	// AssignToAgent links an agent to the active version of a prompt.
	AssignToAgent(ctx context.Context, orgID, agentID, promptID uuid.UUID, slot string, position int) (*models.AgentPrompt, error)
	// UnassignFromAgent removes one of the agent's assignments by id.
	UnassignFromAgent(ctx context.Context, orgID, agentID, assignmentID uuid.UUID) error
}

// promptService implements PromptService.
type promptService struct {
	promptRepo     repositories.PromptRepository
	assignmentRepo repositories.PromptAssignmentRepository
	agentRepo      repositories.AgentRepository
	runTx          database.TxRunner
	retryCfg       *retry.Config
	logger         *zap.Logger
}

// NewPromptService creates a new prompt service with dependencies.
func NewPromptService(
	promptRepo repositories.PromptRepository,
	assignmentRepo repositories.PromptAssignmentRepository,
	agentRepo repositories.AgentRepository,
	runTx database.TxRunner,
	logger *zap.Logger,
) PromptService {
	return &promptService{
		promptRepo:     promptRepo,
		assignmentRepo: assignmentRepo,
		agentRepo:      agentRepo,
		runTx:          runTx,
		retryCfg:       retry.DefaultConfig(),
		logger:         logger,
	}
}

// Create creates version 1 of a new logical prompt.
func (s *promptService) Create(ctx context.Context, orgID uuid.UUID, name, promptType, content, description string) (*models.Prompt, error) {
	if name == "" {
		return nil, fmt.Errorf("prompt name is required")
	}
	if !models.IsValidPromptType(promptType) {
		return nil, fmt.Errorf("invalid prompt type: %s", promptType)
	}

	prompt := &models.Prompt{
		OrganizationID: orgID,
		Name:           name,
		PromptType:     promptType,
		Version:        1,
		Content:        content,
		Description:    description,
		IsActive:       true,
	}

	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.runTx(ctx, func(txCtx context.Context) error {
			// The partial unique index would catch this too; checking first
			// gives the caller a clean DuplicateKey instead of a raw
			// constraint violation.
			_, err := s.promptRepo.GetActive(txCtx, orgID, name, promptType)
			if err == nil {
				return fmt.Errorf("%w: active version already exists for %s/%s", apperrors.ErrDuplicateKey, name, promptType)
			}
			if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}

			return s.promptRepo.Insert(txCtx, prompt)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created prompt",
		zap.String("org_id", orgID.String()),
		zap.String("name", name),
		zap.String("prompt_type", promptType),
		zap.String("version_id", prompt.ID.String()))

	return prompt, nil
}

// CreateNextVersion forks the next version of an existing logical prompt.
func (s *promptService) CreateNextVersion(ctx context.Context, orgID uuid.UUID, name, promptType string, update models.PromptUpdate) (*models.Prompt, error) {
	if !models.IsValidPromptType(promptType) {
		return nil, fmt.Errorf("invalid prompt type: %s", promptType)
	}

	var next *models.Prompt

	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.runTx(ctx, func(txCtx context.Context) error {
			// Locking the active row serializes concurrent forks of the same
			// logical prompt: the version sequence stays gap-free and only one
			// writer deactivates V.
			old, err := s.promptRepo.GetActiveForUpdate(txCtx, orgID, name, promptType)
			if errors.Is(err, apperrors.ErrNotFound) {
				// Under read committed, a locked read that waited out a
				// concurrent fork re-checks the now-inactive row and cannot
				// see its replacement in the statement snapshot, so it comes
				// back empty even though an active version exists. A fresh
				// statement does see the committed fork; in that case the
				// whole transaction must rerun.
				if _, recheck := s.promptRepo.GetActive(txCtx, orgID, name, promptType); recheck == nil {
					return &database.ConflictError{Cause: fmt.Errorf("prompt %s/%s forked concurrently", name, promptType)}
				}
				return err
			}
			if err != nil {
				return err
			}

			candidate := &models.Prompt{
				OrganizationID: orgID,
				Name:           name,
				PromptType:     promptType,
				Version:        old.Version + 1,
				Content:        old.Content,
				Description:    old.Description,
				IsActive:       true,
			}
			if update.Content != nil {
				candidate.Content = *update.Content
			}
			if update.Description != nil {
				candidate.Description = *update.Description
			}

			// Deactivate before insert so the one-active-version index never
			// sees two active rows, even transiently inside the transaction.
			if err := s.promptRepo.Deactivate(txCtx, old.ID); err != nil {
				return err
			}
			if err := s.promptRepo.Insert(txCtx, candidate); err != nil {
				return err
			}

			migrated, err := s.assignmentRepo.Retarget(txCtx, old.ID, candidate.ID)
			if err != nil {
				return err
			}

			s.logger.Debug("Retargeted assignments to new prompt version",
				zap.String("old_version_id", old.ID.String()),
				zap.String("new_version_id", candidate.ID.String()),
				zap.Int64("migrated", migrated))

			next = candidate
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created prompt version",
		zap.String("org_id", orgID.String()),
		zap.String("name", name),
		zap.String("prompt_type", promptType),
		zap.Int("version", next.Version))

	return next, nil
}

// GetActive returns the active version of the logical prompt.
func (s *promptService) GetActive(ctx context.Context, orgID uuid.UUID, name, promptType string) (*models.Prompt, error) {
	return s.promptRepo.GetActive(ctx, orgID, name, promptType)
}

// GetVersion returns one specific version by id, active or not.
func (s *promptService) GetVersion(ctx context.Context, orgID, versionID uuid.UUID) (*models.Prompt, error) {
	return s.promptRepo.GetByID(ctx, orgID, versionID)
}

// ListVersions returns the full version history of the logical prompt.
func (s *promptService) ListVersions(ctx context.Context, orgID uuid.UUID, name, promptType string) ([]*models.Prompt, error) {
	return s.promptRepo.ListVersions(ctx, orgID, name, promptType)
}

// DeleteVersion removes one version row, deleting its assignments first.
func (s *promptService) DeleteVersion(ctx context.Context, orgID, versionID uuid.UUID) error {
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.runTx(ctx, func(txCtx context.Context) error {
			// No assignment may reference a missing version, so assignments
			// go first within the same transaction.
			removed, err := s.assignmentRepo.DeleteByPrompt(txCtx, versionID)
			if err != nil {
				return err
			}
			if removed > 0 {
				s.logger.Debug("Deleted assignments of prompt version",
					zap.String("version_id", versionID.String()),
					zap.Int64("removed", removed))
			}

			return s.promptRepo.Delete(txCtx, orgID, versionID)
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("Deleted prompt version",
		zap.String("org_id", orgID.String()),
		zap.String("version_id", versionID.String()))

	return nil
}

// AssignToAgent links an agent to the active version of a prompt.
func (s *promptService) AssignToAgent(ctx context.Context, orgID, agentID, promptID uuid.UUID, slot string, position int) (*models.AgentPrompt, error) {
	if !models.IsValidSlot(slot) {
		return nil, fmt.Errorf("invalid slot: %s", slot)
	}

	assignment := &models.AgentPrompt{
		AgentID:  agentID,
		PromptID: promptID,
		Slot:     slot,
		Position: position,
	}

	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.runTx(ctx, func(txCtx context.Context) error {
			if _, err := s.agentRepo.GetByID(txCtx, orgID, agentID); err != nil {
				return err
			}

			prompt, err := s.promptRepo.GetByID(txCtx, orgID, promptID)
			if err != nil {
				return err
			}
			if !prompt.IsActive {
				return fmt.Errorf("cannot assign superseded prompt version %s", promptID)
			}

			return s.assignmentRepo.Assign(txCtx, assignment)
		})
	})
	if err != nil {
		return nil, err
	}

	return assignment, nil
}

// UnassignFromAgent removes one of the agent's assignments by id.
func (s *promptService) UnassignFromAgent(ctx context.Context, orgID, agentID, assignmentID uuid.UUID) error {
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.runTx(ctx, func(txCtx context.Context) error {
			if _, err := s.agentRepo.GetByID(txCtx, orgID, agentID); err != nil {
				return err
			}

			return s.assignmentRepo.Unassign(txCtx, agentID, assignmentID)
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("Unassigned prompt",
		zap.String("agent_id", agentID.String()),
		zap.String("assignment_id", assignmentID.String()))

	return nil
}

// Ensure promptService implements PromptService at compile time.
var _ PromptService = (*promptService)(nil)
