// Package repository defines the storage contracts the services and the
// reminder job depend on. internal/repository/sqlite is the implementation.
package repository

import (
	"context"
	"time"

	"github.com/sakif/quiet-hours/internal/model"
)

// ListOptions scopes a block listing to one owner and one filter.
// Now is the reference instant for the time-based filters. A Limit of zero
// or less returns every row; callers clamp page sizes before this point.
type ListOptions struct {
	UserID string
	Filter model.BlockFilter
	Now    time.Time
	Limit  int
	Offset int
}

type BlockRepository interface {
	Create(ctx context.Context, block *model.Block) error
	GetByID(ctx context.Context, id string) (*model.Block, error)
	List(ctx context.Context, opts ListOptions) ([]model.Block, error)
	Stats(ctx context.Context, userID string, now time.Time) (*model.BlockStats, error)
	Update(ctx context.Context, block *model.Block) error
	Delete(ctx context.Context, id string) error
}

type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *model.Profile) error
	GetProfileByUserID(ctx context.Context, userID string) (*model.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	UpsertGitHubProfile(ctx context.Context, profile *model.Profile) error
}

// ReminderStore is the narrow view of storage used by the dispatch job.
//
// QueryBlocksDueForReminder returns blocks whose reminder is still pending and
// whose start lies in [from, to], both bounds inclusive.
// QueryProfilesByOwnerIDs returns whatever profiles exist for the given ids;
// missing ids are simply absent from the result.
// MarkReminderSent moves a block from PENDING to SENT. It never overwrites an
// existing timestamp.
type ReminderStore interface {
	QueryBlocksDueForReminder(ctx context.Context, from, to time.Time) ([]model.Block, error)
	QueryProfilesByOwnerIDs(ctx context.Context, userIDs []string) ([]model.Profile, error)
	MarkReminderSent(ctx context.Context, blockID string, at time.Time) error
}
