// Package reminder implements the study reminder dispatch job.
//
// ONE INVOCATION:
//  1. Select pending blocks starting in [now, now+Window].
//  2. Bulk-load the owners' profiles and join them in memory by user id.
//  3. For each block with a profile: render, send, then mark it sent.
//  4. Return a Summary of what happened.
//
// Blocks whose owner has no profile are skipped without being counted.
// Failures of a single block never stop the others; only the two bulk
// lookups are fatal.
//
// DELIVERY GUARANTEE:
// Sending and marking are two separate steps, so a crash (or a failed mark)
// between them leaves the block PENDING and the next run sends it again.
// Delivery is at-least-once. Two overlapping invocations can also both pick
// the same block; that race is accepted.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/notify"
	"github.com/sakif/quiet-hours/internal/repository"
)

// Window is how far ahead of now the job looks. It is fixed; the per-block
// remind_before_minutes value is stored but does not widen or narrow it.
const Window = 10 * time.Minute

var (
	// ErrStoreQuery wraps a failure to select candidate blocks.
	ErrStoreQuery = errors.New("querying study blocks")
	// ErrProfileLookup wraps a failure to load the owners' profiles.
	ErrProfileLookup = errors.New("querying profiles")
)

type Options struct {
	// Concurrency bounds how many blocks are processed at once. Values
	// below 1 mean sequential processing.
	Concurrency int
	// Location is the time zone used to format times in the email.
	Location *time.Location
}

type Job struct {
	store    repository.ReminderStore
	notifier notify.Notifier
	logger   *slog.Logger
	opts     Options
}

func NewJob(store repository.ReminderStore, notifier notify.Notifier, logger *slog.Logger, opts Options) *Job {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Job{
		store:    store,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
	}
}

// candidate is a due block joined with its owner's profile.
type candidate struct {
	block   model.Block
	profile model.Profile
}

// Run performs one dispatch invocation at the given instant. now is taken as
// a parameter so the whole run sees a single clock reading. It is truncated
// to the store's millisecond precision so the window and the sent mark agree
// with what is persisted.
func (j *Job) Run(ctx context.Context, now time.Time) (*Summary, error) {
	now = now.UTC().Truncate(time.Millisecond)
	windowEnd := now.Add(Window)

	j.logger.Info("checking for study blocks",
		"from", now.Format(time.RFC3339), "to", windowEnd.Format(time.RFC3339))

	blocks, err := j.store.QueryBlocksDueForReminder(ctx, now, windowEnd)
	if err != nil {
		j.logger.Error("querying study blocks failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreQuery, err)
	}
	if len(blocks) == 0 {
		j.logger.Info("no blocks found needing reminders")
		return &Summary{}, nil
	}

	candidates, err := j.join(ctx, blocks)
	if err != nil {
		return nil, err
	}
	j.logger.Info("found blocks needing reminders", "count", len(candidates))
	if len(candidates) == 0 {
		return &Summary{}, nil
	}

	results := make([]Result, len(candidates))
	var g errgroup.Group
	g.SetLimit(j.opts.Concurrency)
	for i := range candidates {
		g.Go(func() error {
			results[i] = j.process(ctx, now, &candidates[i])
			return nil
		})
	}
	_ = g.Wait()

	summary := newSummary(results)
	j.logger.Info("reminder processing complete",
		"total", summary.TotalBlocks,
		"successful", summary.Successful,
		"failed", summary.Failed,
	)
	return summary, nil
}

// join loads the profiles of the distinct owners in one call and pairs each
// block with its owner's profile. Blocks without a profile are dropped.
func (j *Job) join(ctx context.Context, blocks []model.Block) ([]candidate, error) {
	seen := make(map[string]struct{}, len(blocks))
	ownerIDs := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if _, ok := seen[b.UserID]; ok {
			continue
		}
		seen[b.UserID] = struct{}{}
		ownerIDs = append(ownerIDs, b.UserID)
	}

	profiles, err := j.store.QueryProfilesByOwnerIDs(ctx, ownerIDs)
	if err != nil {
		j.logger.Error("querying profiles failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrProfileLookup, err)
	}

	byOwner := make(map[string]model.Profile, len(profiles))
	for _, p := range profiles {
		byOwner[p.UserID] = p
	}

	candidates := make([]candidate, 0, len(blocks))
	for _, b := range blocks {
		p, ok := byOwner[b.UserID]
		if !ok {
			j.logger.Warn("skipping block without owner profile", "block_id", b.ID, "user_id", b.UserID)
			continue
		}
		candidates = append(candidates, candidate{block: b, profile: p})
	}
	return candidates, nil
}

// process renders, sends and marks one block. It never returns an error:
// every failure is recorded in the Result.
func (j *Job) process(ctx context.Context, now time.Time, c *candidate) Result {
	res := Result{BlockID: c.block.ID}

	msg, err := RenderEmail(&c.block, &c.profile, j.opts.Location)
	if err != nil {
		j.logger.Error("rendering reminder failed", "block_id", c.block.ID, "error", err)
		res.Error = err.Error()
		return res
	}

	emailID, err := j.notifier.Send(ctx, msg)
	if err != nil {
		j.logger.Error("sending reminder failed", "block_id", c.block.ID, "error", err)
		res.Error = err.Error()
		return res
	}
	res.EmailID = emailID

	// The email is out. If marking fails the block stays PENDING and will be
	// picked up again by the next run.
	if err := j.store.MarkReminderSent(ctx, c.block.ID, now); err != nil {
		j.logger.Error("updating reminder status failed",
			"block_id", c.block.ID, "email_id", emailID, "error", err)
		res.Error = fmt.Sprintf("marking reminder sent: %v", err)
		return res
	}

	j.logger.Info("sent reminder", "block_id", c.block.ID, "to", c.profile.Email, "email_id", emailID)
	res.Email = c.profile.Email
	res.Success = true
	return res
}
