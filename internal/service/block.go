// Package service contains the business rules of the application.
//
//	Handler (HTTP) → Service (rules, ownership) → Repository (SQL)
//
// Services take repository interfaces, return apperror values for rule
// violations and never look at HTTP types.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/quiet-hours/internal/apperror"
	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/repository"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MinRemindBefore      = 1
	MaxRemindBefore      = 24 * 60
	DefaultListLimit     = 50
	MaxListLimit         = 200
)

// BlockInput carries the user-editable fields of a block. A nil
// RemindBeforeMinutes means the default on create and "unchanged" on update.
type BlockInput struct {
	Title               string
	Description         string
	StartTime           time.Time
	EndTime             time.Time
	RemindBeforeMinutes *int
}

// BlockService manages study blocks on behalf of their owners. Every method
// takes the caller's user id; a block owned by someone else is reported as
// not found.
type BlockService struct {
	repo   repository.BlockRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewBlockService(repo repository.BlockRepository, logger *slog.Logger) *BlockService {
	return &BlockService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Now is the service clock. Handlers use it to derive block status so the
// status and the list filter agree.
func (s *BlockService) Now() time.Time {
	return s.now().UTC()
}

func validateFields(in *BlockInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if in.StartTime.IsZero() {
		return apperror.ValidationFailed("startTime", "start time is required")
	}
	if in.EndTime.IsZero() {
		return apperror.ValidationFailed("endTime", "end time is required")
	}
	if !in.EndTime.After(in.StartTime) {
		return apperror.ValidationFailed("endTime", "end time must be after start time")
	}
	if in.RemindBeforeMinutes != nil {
		m := *in.RemindBeforeMinutes
		if m < MinRemindBefore || m > MaxRemindBefore {
			return apperror.ValidationFailed("remindBeforeMinutes",
				fmt.Sprintf("remind before must be between %d and %d minutes", MinRemindBefore, MaxRemindBefore))
		}
	}
	return nil
}

// Create validates and stores a new block for userID. The start must lie in
// the future.
func (s *BlockService) Create(ctx context.Context, userID string, in BlockInput) (*model.Block, error) {
	if err := validateFields(&in); err != nil {
		return nil, err
	}
	if !in.StartTime.After(s.Now()) {
		return nil, apperror.ValidationFailed("startTime", "start time must be in the future")
	}

	block := &model.Block{
		UserID:              userID,
		Title:               in.Title,
		Description:         in.Description,
		StartTime:           in.StartTime.UTC(),
		EndTime:             in.EndTime.UTC(),
		RemindBeforeMinutes: model.DefaultRemindBeforeMinutes,
	}
	if in.RemindBeforeMinutes != nil {
		block.RemindBeforeMinutes = *in.RemindBeforeMinutes
	}

	if err := s.repo.Create(ctx, block); err != nil {
		s.logger.Error("failed to create block", "user_id", userID, "error", err)
		return nil, fmt.Errorf("creating block: %w", err)
	}

	s.logger.Info("block created", "id", block.ID, "user_id", userID, "start", block.StartTime)
	return block, nil
}

// Get returns one of userID's blocks.
func (s *BlockService) Get(ctx context.Context, userID, id string) (*model.Block, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "block ID is required")
	}

	block, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if block.UserID != userID {
		return nil, apperror.NotFound("block", id)
	}
	return block, nil
}

// List returns userID's blocks matching filter, ordered by start time.
func (s *BlockService) List(ctx context.Context, userID string, filter model.BlockFilter, limit, offset int) ([]model.Block, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	blocks, err := s.repo.List(ctx, repository.ListOptions{
		UserID: userID,
		Filter: filter,
		Now:    s.Now(),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list blocks", "user_id", userID, "error", err)
		return nil, fmt.Errorf("listing blocks: %w", err)
	}
	return blocks, nil
}

// Stats returns the dashboard counters for userID.
func (s *BlockService) Stats(ctx context.Context, userID string) (*model.BlockStats, error) {
	stats, err := s.repo.Stats(ctx, userID, s.Now())
	if err != nil {
		s.logger.Error("failed to count blocks", "user_id", userID, "error", err)
		return nil, fmt.Errorf("counting blocks: %w", err)
	}
	return stats, nil
}

// Update replaces the editable fields of one of userID's blocks.
//
// A start time in the past is only rejected when the start actually changes,
// so a block that is already running can still get a new title or end time.
// The reminder state is left alone: editing a SENT block does not re-arm it.
func (s *BlockService) Update(ctx context.Context, userID, id string, in BlockInput) (*model.Block, error) {
	block, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := validateFields(&in); err != nil {
		return nil, err
	}
	if !in.StartTime.Equal(block.StartTime) && !in.StartTime.After(s.Now()) {
		return nil, apperror.ValidationFailed("startTime", "start time must be in the future")
	}

	block.Title = in.Title
	block.Description = in.Description
	block.StartTime = in.StartTime.UTC()
	block.EndTime = in.EndTime.UTC()
	if in.RemindBeforeMinutes != nil {
		block.RemindBeforeMinutes = *in.RemindBeforeMinutes
	}

	if err := s.repo.Update(ctx, block); err != nil {
		s.logger.Error("failed to update block", "id", id, "error", err)
		return nil, fmt.Errorf("updating block: %w", err)
	}

	s.logger.Info("block updated", "id", block.ID, "user_id", userID)
	return block, nil
}

// Delete removes one of userID's blocks.
func (s *BlockService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("block deleted", "id", id, "user_id", userID)
	return nil
}
